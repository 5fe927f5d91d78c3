package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"diagnosis-workers/internal/common/config"
	"diagnosis-workers/internal/common/logger"
	"diagnosis-workers/internal/diagnosis/engine"
	"diagnosis-workers/internal/diagnosis/knowledgebase"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kb-tool",
		Short:         "Inspect the diagnosis knowledge base",
		Long:          "kb-tool validates a knowledge base file, lists its catalog and runs the diagnosis pipeline against it.",
		SilenceUsage:  true,
	}

	root.PersistentFlags().String("kb", "data/knowledge_base.json", "Path to the knowledge base JSON file")
	root.PersistentFlags().String("config", "", "Path to a config file whose scoring section tunes the engine")
	root.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(newValidateCmd())
	root.AddCommand(newConditionsCmd())
	root.AddCommand(newSymptomsCmd())
	root.AddCommand(newNormalizeCmd())
	root.AddCommand(newDiagnoseCmd())
	return root
}

// loadKnowledgeBase reads the file named by --kb.
func loadKnowledgeBase(cmd *cobra.Command) (*knowledgebase.KnowledgeBase, error) {
	path, _ := cmd.Flags().GetString("kb")
	kb, err := knowledgebase.FileSource{Path: path}.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load knowledge base: %w", err)
	}
	return kb, nil
}

// engineConfig resolves the scoring constants: the --config file's scoring
// section when given, the stock tuning otherwise.
func engineConfig(cmd *cobra.Command) (engine.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return engine.DefaultConfig(), nil
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return engine.Config{}, fmt.Errorf("load config: %w", err)
	}
	return engine.FromScoring(cfg.Scoring), nil
}

func buildEngine(cmd *cobra.Command) (*engine.Engine, error) {
	kb, err := loadKnowledgeBase(cmd)
	if err != nil {
		return nil, err
	}
	cfg, err := engineConfig(cmd)
	if err != nil {
		return nil, err
	}
	level, _ := cmd.Flags().GetString("log-level")
	return engine.New(kb, cfg, logger.NewStructured(level, "console", "stderr"))
}
