// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/swcache/internal/meta"
)

const bashCompletionScript = `# bash completion for swcache
_swcache()
{
    local cur prev cmd
    COMPREPLY=()
    cur=${COMP_WORDS[COMP_CWORD]}
    prev=${COMP_WORDS[COMP_CWORD-1]}

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        COMPREPLY=( $(compgen -W "install serve fetch ls caches prune diff completion --help --version" -- "$cur") )
        return 0
    fi

    cmd=${COMP_WORDS[1]}
    local store="--backend -b --cache-dir --sqlite-path --name -n --s3-bucket --s3-prefix --s3-region --s3-profile --s3-endpoint"
    local origin="--origin -O --timeout"
    local common="--attrs -a --color -c --filter -f --output -o --sort -s --titles -t --schema"

    case "$cmd" in
        install) local opts="$origin $store --prune" ;;
        serve)   local opts="$origin $store --addr --prune" ;;
        fetch)   local opts="$origin $store --path -p --include -i" ;;
        diff)    local opts="$origin $store --color -c" ;;
        ls)      local opts="$common $store --all" ;;
        caches)  local opts="$common $store" ;;
        prune)   local opts="$store --dry-run" ;;
        completion)
            COMPREPLY=( $(compgen -W "bash zsh" -- "$cur") )
            return 0
            ;;
        *) local opts="" ;;
    esac

    case "$prev" in
        --output|-o)
            COMPREPLY=( $(compgen -W "text json raw yaml" -- "$cur") )
            return 0
            ;;
        --backend|-b)
            COMPREPLY=( $(compgen -W "memory disk sqlite s3" -- "$cur") )
            return 0
            ;;
        --cache-dir|--sqlite-path)
            COMPREPLY=( $(compgen -o dirnames -- "$cur") )
            return 0
            ;;
    esac

    COMPREPLY=( $(compgen -W "$opts" -- "$cur") )
    return 0
}

complete -F _swcache swcache
`

const zshCompletionScript = `#compdef swcache

_swcache() {
  local -a cmds
  cmds=(
    'install:precache the asset list from the origin'
    'serve:serve the origin through the offline cache'
    'fetch:answer one request cache-first'
    'ls:list the entries of a cache'
    'caches:list the named caches'
    'prune:delete every cache except the current one'
    'diff:compare a cached asset with the live origin'
    'completion:generate shell completion script'
  )

  local -a store origin common
  store=(
    '(-b --backend)'{-b,--backend}'[cache storage backend]:backend:(memory disk sqlite s3)'
    '--cache-dir[base directory]:dir:_directories'
    '--sqlite-path[sqlite database file]:file:_files'
    '(-n --name)'{-n,--name}'[cache name]:name'
    '--s3-bucket[s3 bucket]:bucket'
    '--s3-prefix[s3 key prefix]:prefix'
    '--s3-region[s3 region]:region'
    '--s3-profile[aws profile]:profile'
    '--s3-endpoint[s3 endpoint]:url'
  )
  origin=(
    '(-O --origin)'{-O,--origin}'[origin base URL]:url'
    '--timeout[network timeout]:duration'
  )
  common=(
    '(-a --attrs)'{-a,--attrs}'[attributes to include]:attrs'
    '(-c --color)'{-c,--color}'[enable colored text]'
    '(-f --filter)'{-f,--filter}'[filters to apply]:filters'
    '(-o --output)'{-o,--output}'[output format]:format:(text json raw yaml)'
    '(-s --sort)'{-s,--sort}'[sort attributes]:attrs'
    '(-t --titles)'{-t,--titles}'[show titles]'
    '--schema[list attributes]'
  )

  if (( CURRENT == 2 )); then
    _describe -t commands 'swcache commands' cmds
    return
  fi

  case $words[2] in
    install) _arguments $origin $store '--prune[delete other caches]' ;;
    serve)   _arguments $origin $store '--addr[listen address]:addr' '--prune[delete other caches]' ;;
    fetch)   _arguments $origin $store '(-p --path)'{-p,--path}'[gjson path]:path' '(-i --include)'{-i,--include}'[print headers]' '1:url' ;;
    diff)    _arguments $origin $store '(-c --color)'{-c,--color}'[color the diff]' '1:url' ;;
    ls)      _arguments $common $store '--all[every cache]' ;;
    caches)  _arguments $common $store ;;
    prune)   _arguments $store '--dry-run[only print]' ;;
    completion) _arguments '1: :((bash zsh))' ;;
  esac
}

if ! typeset -f compdef >/dev/null 2>&1; then
  autoload -Uz compinit && compinit -i
fi
compdef _swcache swcache
`

func CompletionCommandAction(ctx context.Context, cmd *cli.Command) error {
	shell := cmd.Args().First()
	if err := ShellValidator(shell); err != nil {
		return err
	}
	if shell == "" {
		sh := os.Getenv("SHELL")
		switch {
		case strings.HasSuffix(sh, "zsh"):
			shell = "zsh"
		case strings.HasSuffix(sh, "bash"):
			shell = "bash"
		default:
			return errors.New("usage: swcache completion [bash|zsh]")
		}
	}

	out := writer(cmd)
	if shell == "zsh" {
		fmt.Fprint(out, zshCompletionScript)
	} else {
		fmt.Fprint(out, bashCompletionScript)
	}
	return nil
}

func CompletionCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "completion",
		Usage:     "generate shell completion script",
		UsageText: "swcache completion [bash|zsh]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Action: CompletionCommandAction,
	}
}
