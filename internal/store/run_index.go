package store

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/run-bigpig/bbn/internal/models"
)

// RunRecord 运行索引中的一行，对应一个受试者的一次运行
type RunRecord struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	RunID           string    `gorm:"uniqueIndex;size:36" json:"runId"`
	SubjectID       int       `gorm:"index" json:"subjectId"`
	Provider        string    `gorm:"size:32" json:"provider"`
	ModelName       string    `gorm:"size:128" json:"modelName"`
	Success         bool      `gorm:"index" json:"success"`
	RoundsCompleted int       `json:"roundsCompleted"`
	MaxRound        int       `json:"maxRound"`
	Summary         string    `gorm:"type:text" json:"summary"`
	Reason          string    `gorm:"type:text" json:"reason"`
	ErrorKind       string    `gorm:"size:32" json:"errorKind"`
	Error           string    `gorm:"type:text" json:"error"`
	OutputPath      string    `gorm:"size:512" json:"outputPath"`
	StartTime       string    `gorm:"size:32" json:"startTime"`
	EndTime         string    `gorm:"size:32" json:"endTime"`
	CreatedAt       time.Time `json:"createdAt"`
}

// RunStats 汇总统计
type RunStats struct {
	Total     int64
	Succeeded int64
	Failed    int64
	AvgRounds float64
}

// RunIndex 基于 gorm 的运行索引
type RunIndex struct {
	db *gorm.DB
}

// OpenRunIndex 打开索引库，dbType 为 sqlite（默认）或 mysql
func OpenRunIndex(dbType, dsn string) (*RunIndex, error) {
	var dialector gorm.Dialector
	switch dbType {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported index database: %s", dbType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	// sqlite 只允许单个写连接
	if dbType != "mysql" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&RunRecord{}); err != nil {
		return nil, err
	}
	return &RunIndex{db: db}, nil
}

// Record 记录一次运行
func (i *RunIndex) Record(ctx context.Context, record *models.SaveFile, outputPath string) error {
	row := &RunRecord{
		RunID:           record.RunID,
		SubjectID:       record.SubjectID,
		Provider:        string(record.Provider),
		ModelName:       record.ModelName,
		Success:         record.Success,
		RoundsCompleted: record.RoundsCompleted,
		MaxRound:        record.MaxRound,
		Summary:         record.Summary,
		Reason:          record.Reason,
		ErrorKind:       record.ErrorKind,
		Error:           record.Error,
		OutputPath:      outputPath,
		StartTime:       record.StartTime,
		EndTime:         record.EndTime,
	}
	return i.db.WithContext(ctx).Create(row).Error
}

// ListBySubject 按时间顺序列出某个受试者的运行
func (i *RunIndex) ListBySubject(ctx context.Context, subjectID int) ([]RunRecord, error) {
	var rows []RunRecord
	err := i.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// Stats 汇总成功率与平均轮数
func (i *RunIndex) Stats(ctx context.Context) (RunStats, error) {
	var stats RunStats
	db := i.db.WithContext(ctx).Model(&RunRecord{})
	if err := db.Count(&stats.Total).Error; err != nil {
		return stats, err
	}
	if err := i.db.WithContext(ctx).Model(&RunRecord{}).Where("success = ?", true).Count(&stats.Succeeded).Error; err != nil {
		return stats, err
	}
	stats.Failed = stats.Total - stats.Succeeded
	if stats.Total == 0 {
		return stats, nil
	}

	var avg struct{ Avg float64 }
	if err := i.db.WithContext(ctx).Model(&RunRecord{}).Select("AVG(rounds_completed) AS avg").Scan(&avg).Error; err != nil {
		return stats, err
	}
	stats.AvgRounds = avg.Avg
	return stats, nil
}

// Close 关闭底层连接
func (i *RunIndex) Close() error {
	sqlDB, err := i.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
