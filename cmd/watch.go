package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"StemDeck/core/apperr"
	"StemDeck/core/watch"
	"StemDeck/model"

	"github.com/spf13/cobra"
)

var (
	watchAcceptTerms bool
	watchSettle      time.Duration
	watchWorkers     int
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "监听目录并自动上传新歌曲",
	Long:  `监听一个投放目录，新写入的音频文件写完后自动上传分离，每个文件只上传一次。已经存在的文件会被忽略。`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}

		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		w := watch.New(a.session, watch.Options{
			Dir:           dir,
			Settle:        watchSettle,
			Workers:       watchWorkers,
			TermsAccepted: watchAcceptTerms,
			OnUpload: func(path string, t model.Track, err error) {
				if err != nil {
					fmt.Fprintf(os.Stderr, "%s: %s\n", filepath.Base(path), apperr.UserMessage(err))
					return
				}
				printTrack(t)
			},
		})

		fmt.Printf("Watching %s, Ctrl-C to stop\n", dir)
		return w.Run(cmd.Context())
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchAcceptTerms, "accept-terms", false, "接受服务条款（上传必需）")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", 500*time.Millisecond, "文件大小保持不变多久后视为写完")
	watchCmd.Flags().IntVar(&watchWorkers, "workers", 1, "并发上传数")
	rootCmd.AddCommand(watchCmd)
}
