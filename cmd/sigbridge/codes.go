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
	"text/tabwriter"

	"github.com/google/subcommands"

	"sigbridge.dev/sigbridge/pkg/abi/nt"
	"sigbridge.dev/sigbridge/pkg/abi/x86"
	"sigbridge.dev/sigbridge/pkg/arch"
	"sigbridge.dev/sigbridge/pkg/faults"
)

// Codes implements subcommands.Command for the "codes" command.
type Codes struct{}

// Name implements subcommands.Command.Name.
func (*Codes) Name() string {
	return "codes"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Codes) Synopsis() string {
	return "Print the exception code produced for each hardware trap."
}

// Usage implements subcommands.Command.Usage.
func (*Codes) Usage() string {
	return `codes - Print the exception code produced for each hardware trap.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Codes) SetFlags(f *flag.FlagSet) {}

// recorder captures raised exception records instead of delivering
// them.
type recorder struct {
	recs []*nt.ExceptionRecord
}

// Raise implements faults.Dispatcher.Raise.
func (r *recorder) Raise(rec *nt.ExceptionRecord, ctx *arch.Context) {
	r.recs = append(r.recs, rec)
}

// scenario is one classified fault fed through the machine.
type scenario struct {
	name string
	run  func(m *faults.Machine, ctx *arch.Context)
}

var scenarios = []scenario{
	{"integer divide", func(m *faults.Machine, ctx *arch.Context) {
		m.Fpe(ctx, x86.T_DIVIDE)
	}},
	{"into overflow", func(m *faults.Machine, ctx *arch.Context) {
		m.Segv(ctx, x86.T_OFLOW, 0, false, 0)
	}},
	{"bound range", func(m *faults.Machine, ctx *arch.Context) {
		m.Segv(ctx, x86.T_BOUND, 0, false, 0)
	}},
	{"invalid opcode", func(m *faults.Machine, ctx *arch.Context) {
		m.Segv(ctx, x86.T_PRIVINFLT, 0, false, 0)
	}},
	{"stack fault", func(m *faults.Machine, ctx *arch.Context) {
		m.Segv(ctx, x86.T_STKFLT, 0, false, 0)
	}},
	{"protection fault", func(m *faults.Machine, ctx *arch.Context) {
		m.Segv(ctx, x86.T_PROTFLT, 0, false, 0)
	}},
	{"page fault (read)", func(m *faults.Machine, ctx *arch.Context) {
		m.Segv(ctx, x86.T_PAGEFLT, 0x1000, true, x86.PFEC_USER)
	}},
	{"page fault (write)", func(m *faults.Machine, ctx *arch.Context) {
		m.Segv(ctx, x86.T_PAGEFLT, 0x1000, true, x86.PFEC_USER|x86.PFEC_WRITE)
	}},
	{"alignment fault", func(m *faults.Machine, ctx *arch.Context) {
		m.Segv(ctx, x86.T_ALIGNFLT, 0, false, 0)
	}},
	{"single step", func(m *faults.Machine, ctx *arch.Context) {
		ctx.SetSingleStep()
		m.Trap(ctx, x86.T_TRCTRAP)
	}},
	{"breakpoint", func(m *faults.Machine, ctx *arch.Context) {
		ctx.Eip = 0x401001
		m.Trap(ctx, x86.T_BPTFLT)
	}},
	{"fpu divide by zero", func(m *faults.Machine, ctx *arch.Context) {
		ctx.FloatSave.StatusWord = x86.FSW_ZE
		m.Fpe(ctx, x86.T_ARITHTRAP)
	}},
	{"fpu stack check", func(m *faults.Machine, ctx *arch.Context) {
		ctx.FloatSave.StatusWord = x86.FSW_IE | x86.FSW_SF
		m.Fpe(ctx, x86.T_ARITHTRAP)
	}},
	{"fpu overflow", func(m *faults.Machine, ctx *arch.Context) {
		ctx.FloatSave.StatusWord = x86.FSW_OE
		m.Fpe(ctx, x86.T_ARITHTRAP)
	}},
	{"keyboard interrupt", func(m *faults.Machine, ctx *arch.Context) {
		m.Intr(ctx)
	}},
}

// Execute implements subcommands.Command.Execute.
func (*Codes) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FAULT\tCODE\tNAME\tPARAMS")
	for _, s := range scenarios {
		var r recorder
		m := faults.New(faults.Options{Dispatcher: &r})
		ctx := &arch.Context{}
		s.run(m, ctx)
		if len(r.recs) == 0 {
			fmt.Fprintf(w, "%s\t-\tsuppressed\t-\n", s.name)
			continue
		}
		for _, rec := range r.recs {
			fmt.Fprintf(w, "%s\t%#08x\t%v\t%d\n", s.name, uint32(rec.Code), rec.Code, rec.NumberParameters)
		}
	}
	w.Flush()
	return subcommands.ExitSuccess
}
