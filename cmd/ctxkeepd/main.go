// Command ctxkeepd is a minimal orchestrator that wires the context
// manager, stream journal, and tool journal together exactly per the
// conversational data flow: push a message, prepare a working context
// (distilling older history automatically if the budget demands it),
// journal streamed output, and commit-and-prune once a turn lands safely
// in history. It doubles as a recovery CLI: every startup replays
// whatever the previous run's journals were left holding before
// accepting new input.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	var projectDir, modelName, configPath string
	flag.StringVar(&projectDir, "projectdir", "", "Project directory holding the .ctxkeep state (required)")
	flag.StringVar(&modelName, "model", "claude-sonnet-4", "Model to start a fresh conversation on")
	flag.StringVar(&configPath, "config", "", "Optional YAML overlay for distillation/flush tuning")
	flag.Parse()

	if projectDir == "" {
		fmt.Fprintln(os.Stderr, "ctxkeepd: -projectdir is required")
		os.Exit(1)
	}

	o, err := bootstrap(projectDir, modelName, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ctxkeepd: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal %v, shutting down", sig)
		cancel()
	}()

	if err := runREPL(ctx, o); err != nil {
		log.Error("repl exited with error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := o.shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "ctxkeepd: shutdown: %v\n", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

// shutdown persists the history one last time and releases both journal
// handles.
func (o *Orchestrator) shutdown(ctx context.Context) error {
	_ = ctx
	if err := o.cm.Save(o.paths.historyFile); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return o.Close()
}

// runREPL reads newline-delimited commands from stdin until EOF or ctx is
// canceled. It exists to exercise the orchestrator's turn cycle (push,
// prepare, switch-model, status, save) without requiring a wired-up LLM
// wire client, which stays an external collaborator per spec.md §6.
func runREPL(ctx context.Context, o *Orchestrator) error {
	fmt.Println("ctxkeepd ready. Commands: say <text> | stream <text> | tool <name> [args] | status | switch <model> | save | quit")
	scanner := bufio.NewScanner(os.Stdin)
	lineCh := make(chan string)
	go func() {
		defer close(lineCh)
		for scanner.Scan() {
			lineCh <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lineCh:
			if !ok {
				return scanner.Err()
			}
			if err := o.handleCommand(ctx, line); err != nil {
				if err == errQuit {
					return nil
				}
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
		}
	}
}

var errQuit = fmt.Errorf("quit")

func (o *Orchestrator) handleCommand(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	cmd, arg, _ := strings.Cut(line, " ")

	switch cmd {
	case "quit", "exit":
		return errQuit

	case "say":
		return o.handleSay(ctx, arg)

	case "stream":
		return o.handleStream(arg)

	case "tool":
		name, toolArgs, _ := strings.Cut(arg, " ")
		return o.handleTool(name, toolArgs)

	case "status":
		status := o.cm.UsageStatus()
		fmt.Println(status.Diagnostic())
		return nil

	case "switch":
		if arg == "" {
			return fmt.Errorf("usage: switch <model>")
		}
		adaptation, err := o.cm.SwitchModel(arg)
		if err != nil {
			return err
		}
		fmt.Printf("switched to %s: %d -> %d tokens (%v)\n", arg, adaptation.OldBudget, adaptation.NewBudget, adaptationKindName(adaptation.Kind))
		return nil

	case "save":
		return o.cm.Save(o.paths.historyFile)

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (o *Orchestrator) handleSay(ctx context.Context, text string) error {
	if text == "" {
		return fmt.Errorf("usage: say <text>")
	}

	msg, err := newUserMessageOrWrap(text)
	if err != nil {
		return err
	}
	o.cm.PushMessage(msg)

	wc, err := o.prepareWithAutoDistill(ctx)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}

	fmt.Printf("pushed; working context now has %d segment(s), %d/%d tokens used\n",
		len(wc.Segments), wc.UsedTokens, wc.TokenBudget)
	return nil
}
