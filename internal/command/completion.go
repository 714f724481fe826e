// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/go-preheat/preheat/internal/meta"
)

const bashCompletionScript = `# bash completion for preheat
_preheat_completions() {
    local cur prev words cword
    if type _get_comp_words_by_ref &>/dev/null; then
        _get_comp_words_by_ref -n : cur prev words cword
    else
        cur="${COMP_WORDS[COMP_CWORD]}"
        prev="${COMP_WORDS[COMP_CWORD-1]}"
        words=("${COMP_WORDS[@]}")
        cword=$COMP_CWORD
    fi

    local commands="get warm status cache watch completion"
    local cache_commands="ls rm purge diff"
    local global_flags="--attrs --color --no-color --filter --local --no-local --output --schema --sort --titles --no-titles"

    case "$prev" in
        --output|-o)
            COMPREPLY=($(compgen -W "text json raw yaml" -- "$cur"))
            return
            ;;
        --policy|-p)
            COMPREPLY=($(compgen -W "cache-first revalidate bypass" -- "$cur"))
            return
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh" -- "$cur"))
            return
            ;;
    esac

    local command="" i
    for ((i = 1; i < cword; i++)); do
        case "${words[i]}" in
            -*) ;;
            *)
                command="${words[i]}"
                break
                ;;
        esac
    done

    case "$command" in
        get)
            COMPREPLY=($(compgen -W "$global_flags --assume-offline --origin --policy --probe --query --timeout --ttl" -- "$cur"))
            ;;
        warm)
            COMPREPLY=($(compgen -W "$global_flags --assume-offline --origin --probe --workers" -- "$cur"))
            ;;
        status)
            COMPREPLY=($(compgen -W "$global_flags --assume-offline --interval --probe --watch" -- "$cur"))
            ;;
        cache)
            COMPREPLY=($(compgen -W "$cache_commands $global_flags --all --color --no-color --older-than" -- "$cur"))
            ;;
        watch)
            COMPREPLY=($(compgen -W "--assume-offline --origin --probe --rewarm --workers" -- "$cur"))
            ;;
        "")
            COMPREPLY=($(compgen -W "$commands --help --version" -- "$cur"))
            ;;
    esac
}
complete -F _preheat_completions preheat
`

const zshCompletionScript = `# zsh completion for preheat
#compdef preheat
_preheat() {
    local -a commands
    commands=(
        'get:fetch one payload through the cache'
        'warm:warm the cache for configured views'
        'status:probe the connection and report its classification'
        'cache:inspect and maintain the payload cache'
        'watch:interactive dashboard over the configured views'
        'completion:print a shell completion script'
    )

    _arguments -C \
        '--attrs[attributes to include in results]:attrs:' \
        '--filter[filters to apply to results]:filter:' \
        '--output[output format]:format:(text json raw yaml)' \
        '--sort[sort specification]:sort:' \
        '--color[enable colored text output]' \
        '--no-color[disable colored text output]' \
        '--titles[show column titles]' \
        '--no-titles[hide column titles]' \
        '1: :->command' \
        '*:: :->args'

    case $state in
        command)
            _describe 'command' commands
            ;;
        args)
            case $words[1] in
                cache)
                    local -a cache_commands
                    cache_commands=(
                        'ls:list cached entries'
                        'rm:remove cached entries'
                        'purge:delete entries older than a cutoff'
                        'diff:compare a cached entry against a fresh copy'
                    )
                    _describe 'cache command' cache_commands
                    ;;
                completion)
                    _values 'shell' bash zsh
                    ;;
            esac
            ;;
    esac
}
compdef _preheat preheat
`

// CompletionCommandAction prints the completion script for the requested
// shell, falling back to whatever $SHELL says.
func CompletionCommandAction(ctx context.Context, cmd *cli.Command) error {
	shell := cmd.Args().First()
	if shell == "" {
		shell = filepath.Base(os.Getenv("SHELL"))
	}

	switch shell {
	case "bash":
		fmt.Print(bashCompletionScript)
	case "zsh":
		fmt.Print(zshCompletionScript)
	default:
		return fmt.Errorf("unsupported shell %q, expected bash or zsh", shell)
	}

	return nil
}

// CompletionCommandBuilder constructs the cli.Command for "completion".
func CompletionCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "completion",
		Usage:     "print a shell completion script",
		UsageText: `preheat completion <bash | zsh>`,
		Metadata: map[string]any{
			"meta": meta,
		},
		Action: CompletionCommandAction,
	}
}
