package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ternarybob/kaiji/internal/common"
	"github.com/ternarybob/kaiji/internal/services/agent"
	"github.com/ternarybob/kaiji/internal/services/cache"
	"github.com/ternarybob/kaiji/internal/services/directory"
	"github.com/ternarybob/kaiji/internal/services/edinet"
	"github.com/ternarybob/kaiji/internal/services/ir"
	"github.com/ternarybob/kaiji/internal/services/llm"
	"github.com/ternarybob/kaiji/internal/services/pdf"
	"github.com/ternarybob/kaiji/internal/services/scraper"
)

var (
	configFile   = flag.String("config", "", "Configuration file path")
	configFileC  = flag.String("c", "", "Configuration file path (shorthand)")
	jsonOutput   = flag.Bool("json", false, "Print the full result as JSON")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("kaiji %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: kaiji [flags] <query>")
		fmt.Fprintln(os.Stderr, "example: kaiji \"トヨタの最新の有価証券報告書を分析して\"")
		flag.PrintDefaults()
		os.Exit(2)
	}

	// Startup order: config, logger, services, agent.
	configPath := *configFile
	if configPath == "" {
		configPath = *configFileC
	}
	if configPath == "" {
		if _, err := os.Stat("kaiji.toml"); err == nil {
			configPath = "kaiji.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := common.InitLogger(config)

	logger.Info().
		Str("version", common.GetFullVersion()).
		Str("config", configPath).
		Msg("Starting kaiji")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scrape := scraper.NewService(config.Scraper, logger)
	defer scrape.Close()

	client := edinet.NewClient(config.Edinet, logger)
	search := edinet.NewSearchService(client, logger)
	companies := directory.NewService(config.Directory, logger)
	docCache := cache.NewService(config.Storage.DownloadDir, logger)

	factory := llm.NewFactory(config.LLM, logger)
	provider, err := factory.DefaultProvider()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize LLM provider: %v\n", err)
		os.Exit(1)
	}
	vision, err := factory.VisionProvider()
	if err != nil {
		logger.Warn().Err(err).Msg("Vision provider unavailable, image-based extraction disabled")
		vision = nil
	}

	extractor := pdf.NewExtractor(vision, logger)
	engine := ir.NewTemplateEngine(config.IR.TemplatesDir, scrape, nil, logger)
	explorer := ir.NewExplorer(scrape, provider, logger)
	irService := ir.NewService(config.IR, config.Storage, engine, explorer, scrape, extractor, provider, logger)
	analyzer := llm.NewLLMAnalyzer(provider)

	toolset := agent.NewToolset(agent.Deps{
		Directory: companies,
		Search:    search,
		Client:    client,
		Cache:     docCache,
		Extractor: extractor,
		IR:        irService,
		Analyzer:  analyzer,
		Storage:   config.Storage,
		Logger:    logger,
	})
	orchestrator := agent.NewOrchestrator(provider, toolset, config.Agent, logger)

	result, err := orchestrator.Run(ctx, query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agent run failed: %v\n", err)
		os.Exit(1)
	}

	if *jsonOutput {
		encoded, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to encode result: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(encoded))
		return
	}

	fmt.Println(result.Answer)
	if len(result.ToolsUsed) > 0 {
		logger.Info().
			Str("intent", result.Intent).
			Str("tools", strings.Join(result.ToolsUsed, ", ")).
			Int("documents", len(result.Documents)).
			Msg("Run complete")
	}
}
