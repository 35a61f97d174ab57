package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/run-bigpig/bbn/internal/config"
	"github.com/run-bigpig/bbn/internal/models"
	"github.com/run-bigpig/bbn/internal/pkg/paths"
	"github.com/run-bigpig/bbn/internal/store"
)

// subjectReport 某个受试者的历次运行与最新存档
type subjectReport struct {
	Runs   []store.RunRecord
	Latest map[string]any // 输出目录中的最新存档，不存在时为 nil
}

// openIndex 按配置打开运行索引，sqlite 时确保目录存在
func openIndex(cfg *config.Config) (*store.RunIndex, error) {
	if cfg.Output.IndexType == "sqlite" || cfg.Output.IndexType == "" {
		if cfg.Output.IndexDSN == "" {
			cfg.Output.IndexDSN = paths.DefaultIndexPath()
		}
		if err := paths.EnsureParentDir(cfg.Output.IndexDSN); err != nil {
			return nil, err
		}
	}
	index, err := store.OpenRunIndex(cfg.Output.IndexType, cfg.Output.IndexDSN)
	if err != nil {
		return nil, fmt.Errorf("open run index: %w", err)
	}
	return index, nil
}

// loadSubjectReport 查询运行索引并读取输出目录中的存档
func loadSubjectReport(ctx context.Context, index *store.RunIndex, files *store.FileStore, subjectID int) (*subjectReport, error) {
	runs, err := index.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	report := &subjectReport{Runs: runs}

	latest, err := files.ReadSaveFile(subjectID)
	switch {
	case err == nil:
		report.Latest = latest
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}
	return report, nil
}

// printSubjectReport 输出 -list-runs 的结果
func printSubjectReport(subjectID int, dir string, report *subjectReport) {
	if len(report.Runs) == 0 {
		log.Info("subject %d: no recorded runs", subjectID)
	}
	for _, r := range report.Runs {
		switch {
		case r.ErrorKind != "":
			log.Info("%s  %s  %s/%s  failed (%s) after %d/%d rounds: %s",
				r.StartTime, r.RunID, r.Provider, r.ModelName, r.ErrorKind, r.RoundsCompleted, r.MaxRound, r.Error)
		case r.Success:
			log.Info("%s  %s  %s/%s  informed in %d/%d rounds",
				r.StartTime, r.RunID, r.Provider, r.ModelName, r.RoundsCompleted, r.MaxRound)
		default:
			log.Info("%s  %s  %s/%s  not informed after %d/%d rounds",
				r.StartTime, r.RunID, r.Provider, r.ModelName, r.RoundsCompleted, r.MaxRound)
		}
	}

	if report.Latest == nil {
		log.Info("no save file for subject %d in %s", subjectID, dir)
		return
	}
	log.Info("latest save file in %s: run_id=%v success=%v summary=%v",
		dir, report.Latest["run_id"], report.Latest["success"], report.Latest[models.VerdictSummaryKey])
}

// printStats 输出 -stats 的结果
func printStats(ctx context.Context, index *store.RunIndex) error {
	stats, err := index.Stats(ctx)
	if err != nil {
		return err
	}
	log.Info("run index: total=%d succeeded=%d failed=%d avg_rounds=%.2f",
		stats.Total, stats.Succeeded, stats.Failed, stats.AvgRounds)
	return nil
}

// runReport -list-runs / -stats 模式，只读运行索引，不需要 API Key 与输入文件
func runReport(ctx context.Context, cfg *config.Config, f *flags, set map[string]bool) error {
	index, err := openIndex(cfg)
	if err != nil {
		return err
	}
	defer index.Close()

	if set["list-runs"] {
		files, err := store.NewFileStore(cfg.Output.Dir)
		if err != nil {
			return err
		}
		report, err := loadSubjectReport(ctx, index, files, f.listRuns)
		if err != nil {
			return err
		}
		printSubjectReport(f.listRuns, files.Dir(), report)
	}
	if f.stats {
		return printStats(ctx, index)
	}
	return nil
}
