package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/run-bigpig/bbn/internal/adk"
	"github.com/run-bigpig/bbn/internal/agent"
	"github.com/run-bigpig/bbn/internal/config"
	"github.com/run-bigpig/bbn/internal/extract"
	"github.com/run-bigpig/bbn/internal/logger"
	"github.com/run-bigpig/bbn/internal/meeting"
	"github.com/run-bigpig/bbn/internal/models"
	"github.com/run-bigpig/bbn/internal/pkg/paths"
	"github.com/run-bigpig/bbn/internal/store"
)

var log = logger.New("Main")

// flags 命令行参数，只有显式设置的参数才覆盖配置文件
type flags struct {
	configPath   string
	input        string
	outputDir    string
	apiKey       string
	model        string
	temperature  float64
	provider     string
	baseURL      string
	promptsPath  string
	maxRound     int
	workers      int
	sleep        float64
	seed         int
	maxTokens    int
	indexType    string
	indexDSN     string
	encoding     string
	logLevel     string
	jsonVerdicts bool
	stream       bool
	listRuns     int
	stats        bool
}

func parseFlags(args []string) (*flags, map[string]bool, error) {
	f := &flags{}
	fs := flag.NewFlagSet("bbn", flag.ContinueOnError)

	fs.StringVar(&f.configPath, "c", "", "YAML config file")
	fs.StringVar(&f.input, "i", "", "input file path (JSON array of subjects)")
	fs.StringVar(&f.input, "input-file", "", "alias of -i")
	fs.StringVar(&f.outputDir, "o", "", "output directory")
	fs.StringVar(&f.outputDir, "output-dir", "", "alias of -o")
	fs.StringVar(&f.apiKey, "k", "", "API key")
	fs.StringVar(&f.apiKey, "api-key", "", "alias of -k")
	fs.StringVar(&f.model, "m", "gpt-4o", "model name")
	fs.StringVar(&f.model, "model-name", "gpt-4o", "alias of -m")
	fs.Float64Var(&f.temperature, "t", 0, "sampling temperature")
	fs.Float64Var(&f.temperature, "temperature", 0, "alias of -t")
	fs.StringVar(&f.provider, "provider", "", "model provider: openai or gemini")
	fs.StringVar(&f.baseURL, "base-url", "", "OpenAI-compatible base URL")
	fs.StringVar(&f.promptsPath, "p", "", "prompt templates JSON (default: built-in)")
	fs.IntVar(&f.maxRound, "r", 10, "maximum number of rounds")
	fs.IntVar(&f.workers, "w", 1, "subjects run in parallel")
	fs.Float64Var(&f.sleep, "sleep", 0, "minimum seconds between model calls")
	fs.IntVar(&f.seed, "seed", 0, "sampling seed")
	fs.IntVar(&f.maxTokens, "max-tokens", 0, "maximum tokens per reply")
	fs.StringVar(&f.indexType, "index", "", "run index database: sqlite or mysql")
	fs.StringVar(&f.indexDSN, "index-dsn", "", "run index DSN")
	fs.StringVar(&f.encoding, "encoding", "", "input file encoding, e.g. gbk")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	fs.BoolVar(&f.jsonVerdicts, "json-verdicts", false, "ask the moderator for JSON-mode replies")
	fs.BoolVar(&f.stream, "stream", false, "call the model in streaming mode")
	fs.IntVar(&f.listRuns, "list-runs", 0, "list recorded runs of a subject and exit")
	fs.BoolVar(&f.stats, "stats", false, "print run index statistics and exit")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set, nil
}

// apply 命令行参数优先级最高
func (f *flags) apply(cfg *config.Config, set map[string]bool) {
	anySet := func(names ...string) bool {
		for _, n := range names {
			if set[n] {
				return true
			}
		}
		return false
	}

	if anySet("i", "input-file") {
		cfg.InputPath = f.input
	}
	if anySet("o", "output-dir") {
		cfg.Output.Dir = f.outputDir
	}
	if anySet("k", "api-key") {
		cfg.AI.APIKey = f.apiKey
	}
	if anySet("m", "model-name") {
		cfg.AI.ModelName = f.model
	}
	if anySet("t", "temperature") {
		cfg.Dialogue.Temperature = float32(f.temperature)
	}
	if set["provider"] {
		cfg.AI.Provider = models.AIProvider(strings.ToLower(f.provider))
	}
	if set["base-url"] {
		cfg.AI.BaseURL = f.baseURL
	}
	if set["p"] {
		cfg.PromptsPath = f.promptsPath
	}
	if set["r"] {
		cfg.Dialogue.MaxRound = f.maxRound
	}
	if set["w"] {
		cfg.Workers = f.workers
	}
	if set["sleep"] {
		cfg.Dialogue.SleepTime = f.sleep
	}
	if set["seed"] {
		seed := f.seed
		cfg.Dialogue.Seed = &seed
	}
	if set["max-tokens"] {
		cfg.AI.MaxTokens = f.maxTokens
	}
	if set["index"] {
		cfg.Output.IndexType = f.indexType
		if cfg.Output.IndexType == "sqlite" && cfg.Output.IndexDSN == "" {
			cfg.Output.IndexDSN = paths.DefaultIndexPath()
		}
	}
	if set["index-dsn"] {
		cfg.Output.IndexDSN = f.indexDSN
	}
	if set["encoding"] {
		cfg.Encoding = f.encoding
	}
	if set["log-level"] {
		cfg.LogLevel = f.logLevel
	}
	if set["json-verdicts"] {
		cfg.JSONVerdicts = f.jsonVerdicts
	}
	if set["stream"] {
		cfg.AI.Stream = f.stream
	}
}

// isTerminal 标准错误是否连接终端，重定向到文件时不输出颜色
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	f, set, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	f.apply(cfg, set)

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetGlobalLevel(level)
	logger.SetOutput(os.Stderr, isTerminal(os.Stderr))

	if set["list-runs"] || f.stats {
		return runReport(context.Background(), cfg, f, set)
	}

	if cfg.InputPath == "" {
		return fmt.Errorf("input file is required (-i)")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	prompts, err := config.LoadPrompts(cfg.PromptsPath)
	if err != nil {
		return err
	}
	subjects, err := extract.LoadSubjects(cfg.InputPath, cfg.Encoding)
	if err != nil {
		return err
	}
	files, err := store.NewFileStore(cfg.Output.Dir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	llm, err := adk.NewModelFactory().CreateModel(ctx, &cfg.AI)
	if err != nil {
		return err
	}
	interval := time.Duration(cfg.Dialogue.SleepTime * float64(time.Second))
	gen := agent.NewLLMGenerator(llm, interval, cfg.AI.Stream)

	svc := meeting.NewService(gen, files, meeting.Options{
		Prompts:      prompts,
		AI:           cfg.AI,
		Dialogue:     cfg.Dialogue,
		Workers:      cfg.Workers,
		JSONVerdicts: cfg.JSONVerdicts,
		MaxTokens:    cfg.AI.MaxTokens,
	})

	var index *store.RunIndex
	if cfg.Output.IndexType != "" {
		index, err = openIndex(cfg)
		if err != nil {
			return err
		}
		defer index.Close()
		svc.SetRunIndex(index)
	}

	total := len(subjects)
	svc.SetProgressCallback(func(e meeting.ProgressEvent) {
		if e.Type == meeting.EventRoundStart {
			log.Debug("subject %d/%d %s", e.SubjectID+1, total, meeting.RoundLabel(e.Round))
		}
	})

	log.Info("running %d subjects with %s (%s), max_round=%d, workers=%d",
		total, cfg.AI.ModelName, cfg.AI.Provider, cfg.Dialogue.MaxRound, cfg.Workers)
	results, runErr := svc.RunAll(ctx, subjects)
	printSummary(results)

	if index != nil {
		if err := printStats(context.Background(), index); err != nil {
			log.Warn("run index stats: %v", err)
		}
	}
	return runErr
}

func printSummary(results []meeting.Result) {
	var succeeded, failed int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			log.Warn("subject %d: error after %d rounds: %v", r.SubjectID, r.RoundsCompleted, r.Err)
		case r.Success:
			succeeded++
			log.Info("subject %d: informed in %d rounds -> %s", r.SubjectID, r.RoundsCompleted, r.OutputPath)
		default:
			log.Info("subject %d: not informed after %d rounds -> %s", r.SubjectID, r.RoundsCompleted, r.OutputPath)
		}
	}
	log.Info("done: %d informed, %d not informed, %d failed", succeeded, len(results)-succeeded-failed, failed)
}
