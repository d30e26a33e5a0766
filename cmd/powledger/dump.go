package powledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/liftedinit/powledger/internal/client"
	"github.com/liftedinit/powledger/internal/config"
	"github.com/liftedinit/powledger/internal/consensus"
	"github.com/liftedinit/powledger/internal/extractor"
	"github.com/liftedinit/powledger/internal/output"
	"github.com/liftedinit/powledger/internal/peers"
	"github.com/liftedinit/powledger/internal/pow"
	"github.com/liftedinit/powledger/internal/validator"
)

var dumpConfig config.DumpConfig

var DumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the chain of a node to various output formats",
	Long:  `Fetch the chain held by a node, verify it and write its blocks and transactions in the specified format.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := RootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		if err := bindFlags(cmd); err != nil {
			return err
		}

		dumpConfig = config.LoadDumpConfigFromCLI()
		if err := dumpConfig.Validate(); err != nil {
			return fmt.Errorf("invalid Dump configuration: %w", err)
		}

		slog.Debug("Command-line arguments", "dumpConfig", dumpConfig)
		return nil
	},
}

var jsonCmd = &cobra.Command{
	Use:   "json [address] [flags]",
	Short: "Dump the chain of a node to JSON files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputHandler, err := output.NewJSONOutputHandler(dumpConfig.Output)
		if err != nil {
			return fmt.Errorf("failed to create JSON output handler: %w", err)
		}
		defer outputHandler.Close()

		return dump(cmd.Context(), args[0], outputHandler)
	},
}

var tsvCmd = &cobra.Command{
	Use:   "tsv [address] [flags]",
	Short: "Dump the chain of a node to TSV files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputHandler, err := output.NewTSVOutputHandler(dumpConfig.Output)
		if err != nil {
			return fmt.Errorf("failed to create TSV output handler: %w", err)
		}
		defer outputHandler.Close()

		return dump(cmd.Context(), args[0], outputHandler)
	},
}

func init() {
	DumpCmd.PersistentFlags().StringP("out", "o", "out", "Output directory")
	DumpCmd.PersistentFlags().UintP("max-retries", "r", 3, "Maximum number of retries when fetching the chain")
	DumpCmd.PersistentFlags().DurationP("timeout", "t", consensus.DefaultPeerTimeout, "Timeout of the chain request")
	DumpCmd.PersistentFlags().IntP("difficulty", "d", pow.DefaultDifficulty, "Difficulty the chain is verified against")
	DumpCmd.PersistentFlags().Bool("skip-verify", false, "Write the chain without verifying it")

	DumpCmd.AddCommand(jsonCmd)
	DumpCmd.AddCommand(tsvCmd)
}

func dump(ctx context.Context, address string, outputHandler output.OutputHandler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	handleInterrupt(cancel)

	opts := extractor.Options{
		MaxRetries:   dumpConfig.MaxRetries,
		ShowProgress: true,
	}
	if !dumpConfig.SkipVerify {
		p, err := pow.New(dumpConfig.Difficulty)
		if err != nil {
			return err
		}
		opts.Validator = validator.New(p)
	}

	address, err := peers.Normalize(address)
	if err != nil {
		return err
	}

	peerClient := client.NewPeerClient(dumpConfig.Timeout, "")
	if _, err := extractor.Extract(ctx, peerClient, address, outputHandler, opts); err != nil {
		return fmt.Errorf("failed to dump chain: %w", err)
	}
	return nil
}
