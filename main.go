package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/illarion/haredb/cmd"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "get":
		runGet(os.Args[2:])
	case "set":
		runSet(os.Args[2:])
	case "del", "rm":
		runDel(os.Args[2:])
	case "status":
		runStatus(os.Args[2:])
	case "compact":
		runCompact(os.Args[2:])
	case "keyring":
		runKeyring(os.Args[2:])
	case "completion":
		runCompletion(os.Args[2:])
	case "help", "-h", "--help":
		if len(os.Args) <= 2 {
			printUsage()
			return
		}
		printCommandHelp(os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// globalFlags registers the flags shared by every data command
func globalFlags(fs *flag.FlagSet) *cmd.Globals {
	g := &cmd.Globals{}
	fs.StringVar(&g.DB, "db", "", "Store path (default $HAREDB_PATH or "+cmd.DefaultPath+")")
	fs.StringVar(&g.Driver, "driver", "", "Storage driver: bolt or badger")
	fs.BoolVar(&g.Prompt, "prompt", false, "Prompt for the secret key")
	return g
}

// metricsFlag registers -metrics for commands that open the engine
func metricsFlag(fs *flag.FlagSet, g *cmd.Globals) {
	fs.BoolVar(&g.Metrics, "metrics", false, "Print engine metrics to stderr on exit")
}

func parse(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func runGet(args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	g := globalFlags(fs)
	metricsFlag(fs, g)
	parse(fs, args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: haredb get [flags] KEY")
		os.Exit(1)
	}
	cmd.Get(*g, fs.Arg(0))
}

func runSet(args []string) {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	g := globalFlags(fs)
	metricsFlag(fs, g)
	diff := fs.Bool("diff", false, "Show the change against the stored value")
	parse(fs, args)

	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "Usage: haredb set [flags] KEY VALUE")
		os.Exit(1)
	}
	cmd.Set(*g, fs.Arg(0), fs.Arg(1), *diff)
}

func runDel(args []string) {
	fs := flag.NewFlagSet("del", flag.ExitOnError)
	g := globalFlags(fs)
	metricsFlag(fs, g)
	parse(fs, args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: haredb del [flags] KEY")
		os.Exit(1)
	}
	cmd.Delete(*g, fs.Arg(0))
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	g := globalFlags(fs)
	parse(fs, args)

	cmd.Status(*g)
}

func runCompact(args []string) {
	fs := flag.NewFlagSet("compact", flag.ExitOnError)
	g := globalFlags(fs)
	parse(fs, args)

	cmd.Compact(*g)
}

func runKeyring(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: haredb keyring <save|delete|status> [flags]")
		os.Exit(1)
	}

	fs := flag.NewFlagSet("keyring "+args[0], flag.ExitOnError)
	g := globalFlags(fs)
	parse(fs, args[1:])

	switch args[0] {
	case "save":
		cmd.KeyringSave(*g)
	case "delete":
		cmd.KeyringDelete(*g)
	case "status":
		cmd.KeyringStatus(*g)
	default:
		fmt.Fprintf(os.Stderr, "Unknown keyring command: %s\n", args[0])
		os.Exit(1)
	}
}

func runCompletion(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: haredb completion <bash|zsh|fish>")
		os.Exit(1)
	}
	cmd.Completion(args[0])
}

func printUsage() {
	fmt.Println("haredb - Embedded encrypted key-value store")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  haredb <command> [flags] [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  get         Print the value stored under a key")
	fmt.Println("  set         Store a value under a key")
	fmt.Println("  del         Delete a key")
	fmt.Println("  status      Show store metadata")
	fmt.Println("  compact     Compact store to reclaim disk space")
	fmt.Println("  keyring     Manage secret key in OS keyring")
	fmt.Println("  completion  Generate shell completions")
	fmt.Println("  help        Show help for a command")
	fmt.Println()
	fmt.Println("Flags (all data commands):")
	fmt.Println("  -db PATH        Store path")
	fmt.Println("  -driver NAME    Storage driver: bolt (default) or badger")
	fmt.Println("  -prompt         Prompt for the secret key")
	fmt.Println("  -metrics        Print engine metrics on exit (get, set, del)")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  HAREDB_SECRET_KEY   Secret key; unset for an insecure store")
	fmt.Println("  HAREDB_PATH         Store path")
	fmt.Println("  HAREDB_DRIVER       Storage driver")
	fmt.Println("  HAREDB_LOG_LEVEL    debug, info, warn (default) or error")
	fmt.Println("  HAREDB_CONFIG       YAML file with the same keys in lower case")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  HAREDB_SECRET_KEY=... haredb set user:1 alice")
	fmt.Println("  haredb get user:1")
	fmt.Println("  haredb status")
	fmt.Println()
	fmt.Println("Use 'haredb help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "get":
		fmt.Println("haredb get [flags] KEY")
		fmt.Println()
		fmt.Println("Prints the value stored under KEY.")
		fmt.Println("Exits with status 1 if the key does not exist.")
		fmt.Println()
		fmt.Println("Example:")
		fmt.Println("  haredb get user:1")
	case "set":
		fmt.Println("haredb set [-diff] [flags] KEY VALUE")
		fmt.Println()
		fmt.Println("Stores VALUE under KEY, replacing any previous value.")
		fmt.Println("A store that does not exist yet is created; it is secure if a")
		fmt.Println("secret key is available, insecure otherwise.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  -diff    Show the change against the stored value")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  haredb set user:1 alice")
		fmt.Println("  haredb set -diff config \"$(cat config.ini)\"")
	case "del", "rm":
		fmt.Println("haredb del [flags] KEY")
		fmt.Println()
		fmt.Println("Deletes KEY. Deleting a missing key is not an error.")
		fmt.Println()
		fmt.Println("Example:")
		fmt.Println("  haredb del user:1")
	case "status":
		fmt.Println("haredb status [flags]")
		fmt.Println()
		fmt.Println("Shows store metadata: driver, mode, version, entry count and size.")
		fmt.Println()
		fmt.Println("Does not require the secret key.")
	case "compact":
		fmt.Println("haredb compact [flags]")
		fmt.Println()
		fmt.Println("Compacts the store to reclaim unused disk space.")
		fmt.Println()
		fmt.Println("Does not require the secret key.")
	case "keyring":
		fmt.Println("haredb keyring <save|delete|status> [flags]")
		fmt.Println()
		fmt.Println("Manages the secret key of a secure store in the OS keyring.")
		fmt.Println("Once saved, commands find the key without HAREDB_SECRET_KEY.")
		fmt.Println()
		fmt.Println("  save      Verify the secret key and store it")
		fmt.Println("  delete    Remove the stored secret key")
		fmt.Println("  status    Show whether a secret key is stored")
	case "completion":
		fmt.Println("haredb completion <bash|zsh|fish>")
		fmt.Println()
		fmt.Println("Outputs shell completion script for the specified shell.")
		fmt.Println()
		fmt.Println("Setup:")
		fmt.Println("  # Bash - add to ~/.bashrc")
		fmt.Println("  eval \"$(haredb completion bash)\"")
		fmt.Println()
		fmt.Println("  # Zsh - add to ~/.zshrc")
		fmt.Println("  eval \"$(haredb completion zsh)\"")
		fmt.Println()
		fmt.Println("  # Fish - add to ~/.config/fish/config.fish")
		fmt.Println("  haredb completion fish | source")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}
