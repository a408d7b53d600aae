package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"StemDeck/core/apperr"
	"StemDeck/core/command"
	"StemDeck/core/library"
	"StemDeck/core/session"
	"StemDeck/core/voice"

	"github.com/spf13/cobra"
)

var listenAcceptTerms bool

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "语音控制模式",
	Long: `交互式语音控制。直接回车开始听写，说完一句命令后自动执行；
也可以直接输入命令文字（如 "play vocals for midnight city"），
"upload <文件>" 上传歌曲，"q" 退出。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, appOptions{
			voice: true,
			voiceHooks: voice.Hooks{
				OnState: func(s voice.State) {
					fmt.Printf("[voice %s]\n", s)
				},
				OnTranscript: func(text string, final bool) {
					if final {
						fmt.Printf("\r> %s\n", text)
						return
					}
					fmt.Printf("\r> %s", text)
				},
				OnNotice: func(n voice.Notice, err error) {
					fmt.Fprintf(os.Stderr, "%s: %s\n", n, apperr.UserMessage(err))
				},
			},
			hooks: session.Hooks{
				Navigate: func(route command.Route) {
					fmt.Printf("-> %s\n", route)
				},
				OpenFileChooser: func() {
					fmt.Println(`Type "upload <file>" to pick a song`)
				},
				Split: func(stems []string) {
					fmt.Printf("Splitting into: %s\n", strings.Join(stems, ", "))
				},
			},
		})
		if err != nil {
			return err
		}
		defer a.close()

		lines := make(chan string)
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
		}()

		fmt.Println(`Press Enter to listen, type a command, or "q" to quit`)
		for {
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				if quit := handleLine(ctx, a, strings.TrimSpace(line)); quit {
					return nil
				}
			}
		}
	},
}

func handleLine(ctx context.Context, a *app, line string) bool {
	switch {
	case line == "q" || line == "quit":
		return true
	case line == "":
		if err := a.session.StartListening(ctx); err != nil {
			fmt.Fprintln(os.Stderr, apperr.UserMessage(err))
		}
	case strings.HasPrefix(line, "upload "):
		path := strings.TrimSpace(strings.TrimPrefix(line, "upload "))
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return false
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return false
		}
		// 失败信息经由状态回调输出
		_, _ = a.session.Upload(ctx, library.UploadFile{
			Name:    filepath.Base(path),
			Size:    info.Size(),
			Content: f,
		}, listenAcceptTerms)
	default:
		if res := a.session.HandleUtterance(ctx, line); unrecognized(res) {
			fmt.Printf("Didn't catch that: %q\n", line)
		}
	}
	return false
}

// unrecognized is true only when no rule took the utterance; consumed
// ones such as an unknown stem stay silent.
func unrecognized(res command.Result) bool {
	return !res.Matched && !res.Consumed
}

func init() {
	listenCmd.Flags().BoolVar(&listenAcceptTerms, "accept-terms", false, "接受服务条款，允许上传")
	rootCmd.AddCommand(listenCmd)
}
