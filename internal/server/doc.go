// 版权所有 2025 CacheVal Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理代理进程的 HTTP 监听器生命周期。进程同时运行
两个监听器（API 与指标端口），两者共用同一套启动、排空与
信号处理流程。

# 核心类型

  - Manager：封装 net/http.Server 与 net.Listener，提供
    Start/Shutdown/WaitForShutdown 生命周期方法，并通过
    Errors() 暴露后台服务异常。
  - Config：监听器配置，包含名称（区分 API 与指标端口）、
    监听地址、读写与空闲超时、最大请求头与排空超时。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务，主线程
    继续装配其余组件。
  - 优雅关闭：Shutdown 在配置的排空超时内完成在途请求，
    重复调用为空操作。
  - 信号监听：WaitForShutdown 监听 SIGINT/SIGTERM 或后台
    服务失败，随后自动触发排空。
*/
package server
