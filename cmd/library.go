package cmd

import (
	"fmt"
	"strings"

	"StemDeck/core/library"
	"StemDeck/model"

	"github.com/spf13/cobra"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "管理音轨库",
	Long:  `列出、同步、重命名和删除音轨库中的歌曲。不带子命令时列出当前身份可见的歌曲。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLibraryList(cmd, args)
	},
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出歌曲和音轨",
	RunE:  runLibraryList,
}

var librarySyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "与服务器同步音轨库",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		// newApp 已经完成一次同步
		fmt.Printf("Synced, %d songs\n", len(a.lib.Tracks()))
		return nil
	},
}

var libraryRenameCmd = &cobra.Command{
	Use:   "rename <track> <title...>",
	Short: "重命名歌曲",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		t, err := findTrack(a.lib, args[0])
		if err != nil {
			return err
		}
		title := strings.Join(args[1:], " ")
		if !a.lib.RenameTrack(t.ID, title) {
			return fmt.Errorf("title must not be empty")
		}
		fmt.Printf("Renamed %s -> %s\n", t.Title, strings.TrimSpace(title))
		return nil
	},
}

var libraryRemoveCmd = &cobra.Command{
	Use:     "remove <track>",
	Aliases: []string{"rm"},
	Short:   "删除一首歌曲",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		t, err := findTrack(a.lib, args[0])
		if err != nil {
			return err
		}
		a.lib.RemoveTrack(t.ID)
		fmt.Printf("Removed %s\n", t.Title)
		return nil
	},
}

var libraryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "清空音轨库",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{})
		if err != nil {
			return err
		}
		defer a.close()

		n := len(a.lib.Tracks())
		a.lib.ClearLibrary()
		fmt.Printf("Cleared %d songs\n", n)
		return nil
	},
}

func runLibraryList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	tracks := a.lib.Tracks()
	if len(tracks) == 0 {
		fmt.Println("Your library is empty")
		return nil
	}
	for _, t := range tracks {
		printTrack(t)
	}
	return nil
}

func printTrack(t model.Track) {
	added := "unknown"
	if t.AddedAt.Valid() {
		added = t.AddedAt.Local().Format("2006-01-02 15:04")
	}
	where := "local"
	switch {
	case t.RemoteID != "":
		where = "stored"
	case t.CacheKey != "":
		where = "cached"
	}
	fmt.Printf("%s  %s  [%s, %s]\n", t.ID, t.Title, where, added)
	for _, l := range t.Layers {
		fmt.Printf("    %-14s %s\n", l.DisplayName, l.File)
	}
}

// findTrack accepts a track id, a backend song id, or a title fragment
// that matches exactly one track.
func findTrack(lib *library.Engine, ref string) (model.Track, error) {
	tracks := lib.Tracks()
	for _, t := range tracks {
		if t.ID == ref || (t.RemoteID != "" && t.RemoteID == ref) {
			return t, nil
		}
	}

	var matches []model.Track
	for _, t := range tracks {
		if t.HasTitleFragment(ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return model.Track{}, fmt.Errorf("no song matching %q", ref)
	case 1:
		return matches[0], nil
	default:
		return model.Track{}, fmt.Errorf("%q matches %d songs, use the track id", ref, len(matches))
	}
}

func init() {
	libraryCmd.AddCommand(libraryListCmd, librarySyncCmd, libraryRenameCmd, libraryRemoveCmd, libraryClearCmd)
	rootCmd.AddCommand(libraryCmd)
}
