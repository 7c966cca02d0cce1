// Command spice 读入网表, 运行直流工作点、直流扫描和交流扫描
//
// 扫描过程中第一次 Ctrl-C 暂停并保存断点, 之后可用 "spice resume <id>" 继续;
// 第二次 Ctrl-C 直接取消。
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile  string
	storeDir    string
	storeKind   string
	outFile     string
	probes      []string
	metricsAddr string

	rootCmd = &cobra.Command{
		Use:   "spice",
		Short: "Nonlinear DC/AC circuit solver with resumable sweeps",
		Long: `spice solves a netlist with a damped Newton-Raphson engine.
DC and AC sweeps can be paused with Ctrl-C and resumed later from the checkpoint store.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
	}

	opCmd = &cobra.Command{
		Use:   "op <netlist>",
		Short: "Compute the DC operating point",
		Args:  cobra.ExactArgs(1),
		RunE:  runOP,
	}
	dcCmd = &cobra.Command{
		Use:   "dc <netlist>",
		Short: "Sweep up to two sources, inner level first",
		Example: `  spice dc rect.cir --sweep V1:0:5:0.1
  spice dc rect.cir --sweep V1:0:5:0.1 --sweep R2:500:1500:500 --threads 4`,
		Args: cobra.ExactArgs(1),
		RunE: runDC,
	}
	acCmd = &cobra.Command{
		Use:     "ac <netlist>",
		Short:   "Small-signal sweep around the operating point",
		Example: `  spice ac rect.cir --kind dec --points 10 --start 1 --stop 1meg`,
		Args:    cobra.ExactArgs(1),
		RunE:    runAC,
	}
	resumeCmd = &cobra.Command{
		Use:   "resume <session>",
		Short: "Resume a paused sweep from the checkpoint store",
		Args:  cobra.ExactArgs(1),
		RunE:  runResume,
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List paused sessions",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "YAML config file (solver, log and store settings)")
	pf.StringVar(&storeDir, "store", "", "checkpoint directory, empty disables checkpoints")
	pf.StringVar(&storeKind, "store-kind", "file", "checkpoint store: file or badger")
	pf.StringVarP(&outFile, "out", "o", "", "result file, format by extension: .json .png .svg .pdf .html")
	pf.StringSliceVarP(&probes, "probe", "p", nil, "columns to plot, e.g. v(a)")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	pf.String("log-level", "info", "debug, info, warn or error")
	pf.Bool("log-json", false, "log JSON to stderr")
	pf.String("log-file", "", "also log JSON to this file")
	pf.Int("threads", 1, "parallel sweep threads")
	pf.String("param-mode", "enhanced", "swept parameter bookkeeping: enhanced or legacy")
	pf.Bool("do-last", false, "always finish a sweep exactly at stop")
	pf.Bool("warm", false, "start each DC point from the previous solution")

	dcCmd.Flags().StringArray("sweep", nil, "sweep level param:start:stop:step, repeat for the outer level")
	dcCmd.Flags().Bool("geometric", false, "treat step as a ratio")

	acCmd.Flags().String("kind", "dec", "lin, dec or oct")
	acCmd.Flags().Int("points", 10, "points (lin: total, dec/oct: per interval)")
	acCmd.Flags().String("start", "1", "start frequency")
	acCmd.Flags().String("stop", "1meg", "stop frequency")

	rootCmd.AddCommand(opCmd, dcCmd, acCmd, resumeCmd, listCmd)
}

func main() {
	err := rootCmd.Execute()
	teardown()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
