// Package sqlite stores contacts in a local SQLite file through gorm. It is
// meant for development machines where running Postgres is overkill.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	intake "github.com/phbpx/contact-intake"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// contactRecord is the gorm model behind intake.Contact.
type contactRecord struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)"`
	Name          string    `gorm:"not null"`
	Email         string    `gorm:"not null"`
	Organization  string    `gorm:"not null;default:''"`
	Role          string    `gorm:"not null;default:''"`
	InquiryType   string    `gorm:"not null"`
	Message       string    `gorm:"type:text;not null"`
	AgreedToTerms bool      `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (contactRecord) TableName() string {
	return "contacts"
}

// Store is a gorm backed contact store.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the database file at path. Use ":memory:"
// for a throwaway database.
func Open(path string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite serialises writers; one connection also keeps ":memory:" databases alive.
	sqlDB.SetMaxOpenConns(1)

	db, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path,
		Conn:       sqlDB,
	}, &gorm.Config{
		// Never log SQL; statements carry visitor data.
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Store{db: db}, nil
}

// Migrate creates or updates the contacts table.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&contactRecord{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, c intake.Contact) error {
	rec := contactRecord{
		ID:            c.ID,
		Name:          c.Name,
		Email:         c.Email,
		Organization:  c.Organization,
		Role:          c.Role,
		InquiryType:   c.InquiryType,
		Message:       c.Message,
		AgreedToTerms: c.AgreedToTerms,
		CreatedAt:     c.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

func (s *Store) StatusCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Count reports the number of stored contacts.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&contactRecord{}).Count(&n).Error
	return n, err
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
