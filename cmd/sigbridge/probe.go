// Copyright 2024 The sigbridge Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"text/tabwriter"

	"github.com/google/subcommands"

	"sigbridge.dev/sigbridge/pkg/sigcontext"
	"sigbridge.dev/sigbridge/pkg/sighandling"
	"sigbridge.dev/sigbridge/pkg/vm86"
)

// Probe implements subcommands.Command for the "probe" command.
type Probe struct{}

// Name implements subcommands.Command.Name.
func (*Probe) Name() string {
	return "probe"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Probe) Synopsis() string {
	return "Report which translation facilities this host supports."
}

// Usage implements subcommands.Command.Usage.
func (*Probe) Usage() string {
	return `probe - Report which translation facilities this host supports.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Probe) SetFlags(f *flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Probe) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "host\t%s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(w, "signal context mapping\t%t\n", sigcontext.HostSupported)
	fmt.Fprintf(w, "raw handler installation\t%t\n", sighandling.HostSupported)
	fmt.Fprintf(w, "legacy-mode execution\t%t\n", vm86.HostSupported)
	w.Flush()
	return subcommands.ExitSuccess
}
