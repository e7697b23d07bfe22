package cmd

import (
	"fmt"
	"os"
)

// Completion outputs shell completion scripts
func Completion(shell string) {
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shell: %s\nSupported: bash, zsh, fish\n", shell)
		os.Exit(1)
	}
}

const bashCompletion = `_haredb() {
    local cur prev words cword
    _init_completion || return

    local commands="get set del status compact keyring help completion"
    local globals="-db -driver -prompt"

    if [[ $cword -eq 1 ]]; then
        COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        return
    fi

    case "$prev" in
        -db)
            _filedir
            return
            ;;
        -driver)
            COMPREPLY=($(compgen -W "bolt badger" -- "$cur"))
            return
            ;;
    esac

    local cmd="${words[1]}"
    case "$cmd" in
        get|del)
            COMPREPLY=($(compgen -W "$globals -metrics" -- "$cur"))
            ;;
        set)
            COMPREPLY=($(compgen -W "$globals -metrics -diff" -- "$cur"))
            ;;
        status|compact)
            COMPREPLY=($(compgen -W "$globals" -- "$cur"))
            ;;
        keyring)
            COMPREPLY=($(compgen -W "save delete status" -- "$cur"))
            ;;
        help)
            COMPREPLY=($(compgen -W "$commands" -- "$cur"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
    esac
}

complete -F _haredb haredb
`

const zshCompletion = `#compdef haredb

_haredb() {
    local -a commands
    commands=(
        'get:Print the value stored under a key'
        'set:Store a value under a key'
        'del:Delete a key'
        'status:Show store metadata'
        'compact:Compact store to reclaim disk space'
        'keyring:Manage secret key in OS keyring'
        'help:Show help for a command'
        'completion:Generate shell completions'
    )

    local -a globals
    globals=(
        '-db[Store path]:store:_files'
        '-driver[Storage driver]:driver:(bolt badger)'
        '-prompt[Prompt for the secret key]'
    )

    _arguments -C \
        '1: :->command' \
        '*: :->args'

    case "$state" in
        command)
            _describe -t commands 'haredb commands' commands
            ;;
        args)
            case "${words[2]}" in
                get|del)
                    _arguments $globals '-metrics[Print engine metrics on exit]'
                    ;;
                set)
                    _arguments $globals '-metrics[Print engine metrics on exit]' '-diff[Show the change against the stored value]'
                    ;;
                status|compact)
                    _arguments $globals
                    ;;
                keyring)
                    _values 'subcommand' save delete status
                    ;;
                help)
                    _describe -t commands 'haredb commands' commands
                    ;;
                completion)
                    _values 'shell' bash zsh fish
                    ;;
            esac
            ;;
    esac
}

_haredb "$@"
`

const fishCompletion = `# haredb fish completions

set -l commands get set del status compact keyring help completion

complete -c haredb -f

# Commands
complete -c haredb -n "not __fish_seen_subcommand_from $commands" -a get -d 'Print a value'
complete -c haredb -n "not __fish_seen_subcommand_from $commands" -a set -d 'Store a value'
complete -c haredb -n "not __fish_seen_subcommand_from $commands" -a del -d 'Delete a key'
complete -c haredb -n "not __fish_seen_subcommand_from $commands" -a status -d 'Show store metadata'
complete -c haredb -n "not __fish_seen_subcommand_from $commands" -a compact -d 'Compact store'
complete -c haredb -n "not __fish_seen_subcommand_from $commands" -a keyring -d 'Manage secret key in OS keyring'
complete -c haredb -n "not __fish_seen_subcommand_from $commands" -a help -d 'Show help'
complete -c haredb -n "not __fish_seen_subcommand_from $commands" -a completion -d 'Generate completions'

# global flags
complete -c haredb -n "__fish_seen_subcommand_from get set del status compact keyring" -o db -r -F -d 'Store path'
complete -c haredb -n "__fish_seen_subcommand_from get set del status compact keyring" -o driver -x -a "bolt badger" -d 'Storage driver'
complete -c haredb -n "__fish_seen_subcommand_from get set del status compact keyring" -o prompt -d 'Prompt for the secret key'

complete -c haredb -n "__fish_seen_subcommand_from set" -o diff -d 'Show the change'
complete -c haredb -n "__fish_seen_subcommand_from get set del" -o metrics -d 'Print engine metrics on exit'

# keyring subcommands
complete -c haredb -n "__fish_seen_subcommand_from keyring" -a "save delete status"

# help completions
complete -c haredb -n "__fish_seen_subcommand_from help" -a "$commands"

# completion completions
complete -c haredb -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
`
