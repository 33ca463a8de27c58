package corpus

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/cacheval/config"
)

// ErrNotFound indicates that a question id is absent from the corpus.
var ErrNotFound = errors.New("corpus: question not found")

// QA is one question/answer pair. The reference answer comes from the
// dataset; the generated answer, quality score, and hit count are written
// back during and after an evaluation run.
type QA struct {
	ID              uint    `gorm:"primaryKey" json:"id"`
	Question        string  `gorm:"not null" json:"question"`
	ReferenceAnswer string  `gorm:"not null" json:"reference_answer"`
	GeneratedAnswer string  `json:"generated_answer,omitempty"`
	QualityScore    float64 `json:"quality_score"`
	HitCount        int     `gorm:"not null;default:0" json:"hit_count"`
}

// TableName maps QA onto the evaluation table.
func (QA) TableName() string { return "qa_pairs" }

// Open connects to the corpus database using the configured driver.
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(cfg.DSN()), gormCfg)
	case "mysql":
		db, err = gorm.Open(mysql.Open(cfg.DSN()), gormCfg)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.DSN()), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Driver, err)
	}

	logger.Info("corpus database opened",
		zap.String("driver", cfg.Driver),
		zap.String("name", cfg.Name),
	)
	return db, nil
}

// Store provides read access to the question corpus and write-back for
// scoring results. Read-only from the proxy's perspective during a run.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore creates a corpus store over an open database handle.
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:     db,
		logger: logger.With(zap.String("component", "corpus")),
	}
}

// AutoMigrate ensures the evaluation table exists.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&QA{})
}

// Get returns the full record for id.
func (s *Store) Get(ctx context.Context, id uint) (*QA, error) {
	var qa QA
	if err := s.db.WithContext(ctx).First(&qa, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("corpus get %d: %w", id, err)
	}
	return &qa, nil
}

// GetQuestion returns the question text for id.
func (s *Store) GetQuestion(ctx context.Context, id uint) (string, error) {
	qa, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return qa.Question, nil
}

// GetReferenceAnswer returns the dataset's reference answer for id.
func (s *Store) GetReferenceAnswer(ctx context.Context, id uint) (string, error) {
	qa, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return qa.ReferenceAnswer, nil
}

// IDs returns up to limit question ids in ascending order. limit <= 0
// returns the whole corpus.
func (s *Store) IDs(ctx context.Context, limit int) ([]uint, error) {
	var ids []uint
	q := s.db.WithContext(ctx).Model(&QA{}).Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("corpus ids: %w", err)
	}
	return ids, nil
}

// Insert adds question/answer pairs to the corpus.
func (s *Store) Insert(ctx context.Context, pairs []QA) error {
	if len(pairs) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&pairs).Error; err != nil {
		return fmt.Errorf("corpus insert: %w", err)
	}
	return nil
}

// AverageScore returns the mean quality score over scored records. Records
// that were never scored are excluded.
func (s *Store) AverageScore(ctx context.Context) (float64, error) {
	var avg *float64
	err := s.db.WithContext(ctx).Model(&QA{}).
		Where("generated_answer <> ''").
		Select("AVG(quality_score)").
		Scan(&avg).Error
	if err != nil {
		return 0, fmt.Errorf("corpus average score: %w", err)
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

// Count returns the corpus size.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&QA{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("corpus count: %w", err)
	}
	return n, nil
}

// SaveGenerated records the generated answer and its quality score.
func (s *Store) SaveGenerated(ctx context.Context, id uint, answer string, score float64) error {
	res := s.db.WithContext(ctx).Model(&QA{}).Where("id = ?", id).Updates(map[string]any{
		"generated_answer": answer,
		"quality_score":    score,
	})
	if res.Error != nil {
		return fmt.Errorf("corpus save generated %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementHitCount bumps the repetition counter for id.
func (s *Store) IncrementHitCount(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Model(&QA{}).Where("id = ?", id).
		UpdateColumn("hit_count", gorm.Expr("hit_count + 1"))
	if res.Error != nil {
		return fmt.Errorf("corpus increment hit count %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
