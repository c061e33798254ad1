// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// yarvs runs a 64-bit RISC-V executable (RV64I + Zicsr + a minimal
// privileged subset) against a single simulated hart.
//
//	yarvs [--perf] [--translation-mode Sv39|Sv48|Sv57] [--n-stack-pages N]
//	      [--log] [--log-file PATH] ELF
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/lmangani-labs/yarvs/internal/trace"
	"github.com/lmangani-labs/yarvs/internal/yarvs"
)

var (
	perf            = flag.Bool("perf", false, "Measure performance: execution time, instruction count, and MIPS")
	translationMode = flag.String("translation-mode", "Sv48", "Mode of virtual to physical address translation: Sv39, Sv48, or Sv57")
	nStackPages     = flag.Int("n-stack-pages", 4, "Number of 4KB pages reserved for the stack")
	wantLog         = flag.Bool("log", false, "Enable per-instruction disassembly and GPR-diff logging")
	logFile         = flag.String("log-file", "", "Path to the log file (default stderr)")
)

func satpMode(s string) (yarvs.SATPMode, error) {
	switch s {
	case "Sv39":
		return yarvs.SATPSv39, nil
	case "Sv48":
		return yarvs.SATPSv48, nil
	case "Sv57":
		return yarvs.SATPSv57, nil
	default:
		return 0, fmt.Errorf("translation mode %q is not supported (want Sv39, Sv48, or Sv57)", s)
	}
}

func run() (int, error) {
	flag.Parse()
	if flag.NArg() != 1 {
		return 1, fmt.Errorf("usage: yarvs [flags] ELF")
	}
	elfPath := flag.Arg(0)

	mode, err := satpMode(*translationMode)
	if err != nil {
		return 1, err
	}
	if *nStackPages <= 0 {
		return 1, fmt.Errorf("--n-stack-pages must be positive, got %d", *nStackPages)
	}

	img, err := yarvs.LoadELF(elfPath)
	if err != nil {
		return 1, err
	}

	h := yarvs.NewHart()
	if err := yarvs.InitializeHart(h, img, mode, *nStackPages); err != nil {
		return 1, err
	}

	if *wantLog {
		dest := os.Stderr
		if *logFile != "" {
			f, err := os.Create(*logFile)
			if err != nil {
				return 1, fmt.Errorf("could not open log file %q: %v", *logFile, err)
			}
			defer f.Close()
			h.Tracer = trace.NewLogger(f)
		} else {
			h.Tracer = trace.NewLogger(dest)
		}
	}

	start := time.Now()
	instrCount, err := h.Run()
	elapsed := time.Since(start)
	if err != nil {
		return 1, err
	}

	if *perf {
		mcs := elapsed.Microseconds()
		var mips float64
		if mcs > 0 {
			mips = float64(instrCount) / float64(mcs)
		}
		fmt.Printf("Executed %d instructions in %d mcs.\nPerformance: %.2f MIPS\n", instrCount, mcs, mips)
	}

	return h.Status, nil
}

func main() {
	status, err := run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(status)
}
