// Command gbdebug is the reference interactive debugger: a cobra command
// tree re-parsed once per REPL line, giving the breakpoint/delete/list/read/
// registers/step/continue vocabulary a real subcommand (and alias) behind
// each word, grounded on oisee-z80-optimizer's cmd/z80opt/main.go — the
// pack's only cobra-based CLI.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mjrussell/dmgcore/internal/cpu"
	"github.com/mjrussell/dmgcore/internal/machine"
)

func mustRead(path string) []byte {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	return b
}

func main() {
	var bootromFile, saveFile string
	root := &cobra.Command{
		Use:   "gbdebug <rom.gb>",
		Short: "interactive step debugger for a DMG cartridge",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			rom := mustRead(args[0])
			save := mustRead(saveFile)
			boot := mustRead(bootromFile)
			m, err := machine.New(rom, boot, save, machine.Config{})
			if err != nil {
				log.Fatalf("load cartridge: %v", err)
			}
			runREPL(m)
		},
	}
	root.Flags().StringVar(&bootromFile, "bootrom-file", "", "optional DMG boot ROM")
	root.Flags().StringVar(&saveFile, "save-file", "", "battery-RAM save path")
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// runREPL reads one command line at a time and re-executes a fresh cobra
// command tree against it, closing over the one shared *machine.Machine. The
// one-Execute-per-line shape is what makes cobra's subcommand/alias/flag
// parsing reusable as a REPL grammar instead of a single-shot CLI.
func runREPL(m *machine.Machine) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("gbdebug ready. Commands: breakpoint|b, delete|d, list|l, read, registers|r, step|s, continue|c, quit")
	for {
		fmt.Print("(gbdebug) ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return
		}
		args := strings.Fields(line)
		cmd := newReplCommand(m)
		cmd.SetArgs(args)
		if err := cmd.Execute(); err != nil {
			fmt.Println("error:", err)
		}
	}
}

// newReplCommand builds a fresh root command for one REPL line. cobra
// commands carry mutable parse state, so a new tree per line avoids stale
// flag values leaking from a previous invocation.
func newReplCommand(m *machine.Machine) *cobra.Command {
	root := &cobra.Command{Use: "gbdebug", SilenceUsage: true, SilenceErrors: true}

	root.AddCommand(&cobra.Command{
		Use:     "breakpoint <addr>",
		Aliases: []string{"b"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddr(args[0])
			if err != nil {
				return err
			}
			m.RequestBreakpoint(addr)
			fmt.Printf("breakpoint set at 0x%04X\n", addr)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:     "delete <addr>",
		Aliases: []string{"d"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddr(args[0])
			if err != nil {
				return err
			}
			m.ClearBreakpoint(addr)
			fmt.Printf("breakpoint cleared at 0x%04X\n", addr)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:     "list",
		Aliases: []string{"l"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, addr := range m.Breakpoints() {
				fmt.Printf("0x%04X\n", addr)
			}
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:  "read <addr>",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddr(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("0x%04X: 0x%02X\n", addr, m.ReadByte(addr))
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:     "registers",
		Aliases: []string{"r"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printRegisters(m.Registers())
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:     "step",
		Aliases: []string{"s"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cycles := m.Step()
			fmt.Printf("stepped %d cycles\n", cycles)
			printRegisters(m.Registers())
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:     "continue",
		Aliases: []string{"c"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			const maxSteps = 100_000_000
			for i := 0; i < maxSteps; i++ {
				m.Step()
				if m.AtBreakpoint() {
					fmt.Printf("hit breakpoint at 0x%04X\n", m.PC())
					return nil
				}
			}
			fmt.Println("stopped: step limit reached without hitting a breakpoint")
			return nil
		},
	})

	return root
}

func parseAddr(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return uint16(v), nil
}

func printRegisters(s cpu.Snapshot) {
	fmt.Printf("A=%02X F=%02X B=%02X C=%02X D=%02X E=%02X H=%02X L=%02X SP=%04X PC=%04X IME=%v state=%v\n",
		s.A, s.F, s.B, s.C, s.D, s.E, s.H, s.L, s.SP, s.PC, s.IME, s.State)
}
