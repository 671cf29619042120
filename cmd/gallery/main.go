package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gallery-go/internal/app"
	"gallery-go/internal/config"
	"gallery-go/internal/gallery"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := loadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// loadEnv reads ./.env, then gallery.env next to the config file. Either
// may be missing.
func loadEnv() error {
	if err := app.LoadEnv(".env"); err != nil {
		return err
	}
	paths, err := app.DefaultPaths()
	if err != nil {
		return err
	}
	return app.LoadEnv(paths.EnvFile)
}

func loadConfig() (*config.Config, string, error) {
	paths, err := app.DefaultPaths()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(paths.ConfigPath)
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, paths.ConfigPath, nil
}

// withApp reads the config, creates a GalleryApp and runs fn with a context
// bounded by the configured operation timeout. With connect set the store
// is made usable first, which restores the stored session.
func withApp(cmd *cobra.Command, connect bool, fn func(ctx context.Context, a *app.GalleryApp) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Gallery.OperationTimeout)
	defer cancel()

	verbose, _ := cmd.Flags().GetBool("verbose")
	a, err := app.NewGalleryApp(ctx, cfg, app.Options{Out: cmd.OutOrStdout(), Verbose: verbose})
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	defer a.Close()

	if connect {
		if err := a.Connect(ctx); err != nil {
			return err
		}
	}
	return fn(ctx, a)
}

// readSecret prompts for a secret without echo on a terminal, or reads one
// line from stdin otherwise.
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}

var rootCmd = &cobra.Command{
	Use:          "gallery",
	Short:        "Image gallery on top of a repository contents API",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration and the local database",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		flags := cmd.Flags()
		store := config.StoreConfig{}
		store.Type, _ = flags.GetString("store")
		store.Name, _ = flags.GetString("name")
		store.Repo, _ = flags.GetString("repo")
		store.Branch, _ = flags.GetString("branch")
		store.APIURL, _ = flags.GetString("api-url")
		store.ProxyURL, _ = flags.GetString("proxy-url")
		store.FSRoot, _ = flags.GetString("fs-root")
		store.S3Bucket, _ = flags.GetString("s3-bucket")
		store.S3Prefix, _ = flags.GetString("s3-prefix")
		store.S3Region, _ = flags.GetString("s3-region")
		store.S3Endpoint, _ = flags.GetString("s3-endpoint")
		store.S3AccessKeyID = os.Getenv("GALLERY_S3_ACCESS_KEY_ID")
		store.S3SecretAccessKey = os.Getenv("GALLERY_S3_SECRET_ACCESS_KEY")

		cfg := config.NewConfig(paths.BaseDir, store)
		cfg.Session.LoginURL, _ = flags.GetString("login-url")

		if err := config.Init(paths.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		if err := app.MigrateDatabase(cfg); err != nil {
			return err
		}

		fmt.Printf("Configuration initialized at %s\n", paths.ConfigPath)
		fmt.Printf("Store:    %s\n", cfg.Store.Type)
		fmt.Printf("Base Dir: %s\n", paths.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Store:      %s\n", cfg.Store.Type)
		switch cfg.Store.Type {
		case "github":
			fmt.Printf("Repo:       %s\n", cfg.Store.Repo)
		case "proxy":
			fmt.Printf("Proxy:      %s\n", cfg.Store.ProxyURL)
		case "filesystem":
			fmt.Printf("Root:       %s\n", cfg.Store.FSRoot)
		case "s3":
			fmt.Printf("Bucket:     %s/%s\n", cfg.Store.S3Bucket, cfg.Store.S3Prefix)
		}
		if cfg.Store.Branch != "" {
			fmt.Printf("Branch:     %s\n", cfg.Store.Branch)
		}
		fmt.Printf("Page Size:  %d\n", cfg.Gallery.PageSize)
		fmt.Printf("Database:   %s\n", cfg.Database.Type)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the local database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if err := app.MigrateDatabase(cfg); err != nil {
			return err
		}
		fmt.Println("Database is up to date.")
		return nil
	},
}

// session commands
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a verified credential",
	Long: "Store a verified credential. Without --user a token is read from " +
		"GALLERY_TOKEN or prompted for; with --user the password is exchanged " +
		"for a session token at the configured login endpoint.",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")

		return withApp(cmd, false, func(ctx context.Context, a *app.GalleryApp) error {
			if user != "" {
				pass, err := readSecret("Password: ")
				if err != nil {
					return err
				}
				if err := a.LoginWithPassword(ctx, user, pass); err != nil {
					return fmt.Errorf("login failed: %w", err)
				}
			} else {
				token := os.Getenv("GALLERY_TOKEN")
				if token == "" {
					var err error
					if token, err = readSecret("Token: "); err != nil {
						return err
					}
				}
				if err := a.Login(ctx, token); err != nil {
					return fmt.Errorf("login failed: %w", err)
				}
			}

			fmt.Println("Logged in.")
			if _, exp := a.SessionState(); !exp.IsZero() {
				fmt.Printf("Session expires %s\n", exp.Local().Format("2006-01-02 15:04"))
			}
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, false, func(ctx context.Context, a *app.GalleryApp) error {
			if err := a.Logout(ctx); err != nil {
				return err
			}
			fmt.Println("Logged out.")
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the store and the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app.GalleryApp) error {
			state, exp := a.SessionState()
			fmt.Printf("Store reachable. Session: %s\n", state)
			if !exp.IsZero() {
				fmt.Printf("Expires: %s\n", exp.Local().Format("2006-01-02 15:04"))
			}
			return nil
		})
	},
}

// folder commands
var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "List folders",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app.GalleryApp) error {
			folders, active, err := a.Folders(ctx)
			if err != nil {
				return err
			}
			if len(folders) == 0 {
				fmt.Println("No folders.")
				return nil
			}
			for _, f := range folders {
				marker := "  "
				if f == active {
					marker = "* "
				}
				fmt.Printf("%s%s\n", marker, f)
			}
			return nil
		})
	},
}

var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Manage folders",
}

var folderCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app.GalleryApp) error {
			_, err := a.CreateFolder(ctx, args[0])
			return err
		})
	},
}

var folderRenameCmd = &cobra.Command{
	Use:   "rename FOLDER NEW_NAME",
	Short: "Rename a folder by moving every file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app.GalleryApp) error {
			_, err := a.RenameFolder(ctx, args[0], args[1])
			var moveErr *gallery.MoveError
			if errors.As(err, &moveErr) {
				fmt.Printf("%d of %d files are under %s, the rest are still under %s.\n",
					moveErr.Moved, moveErr.Total, moveErr.To, moveErr.From)
			}
			return err
		})
	},
}

var folderDeleteCmd = &cobra.Command{
	Use:   "delete FOLDER",
	Short: "Delete a folder and all its images",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app.GalleryApp) error {
			return a.DeleteFolder(ctx, args[0])
		})
	},
}

// image commands
var imagesCmd = &cobra.Command{
	Use:   "images FOLDER",
	Short: "List one page of a folder's images",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, _ := cmd.Flags().GetString("filter")
		sortFlag, _ := cmd.Flags().GetString("sort")
		page, _ := cmd.Flags().GetInt("page")

		sortKey, err := gallery.ParseSortKey(sortFlag)
		if err != nil {
			return err
		}

		return withApp(cmd, true, func(ctx context.Context, a *app.GalleryApp) error {
			view, err := a.Images(ctx, args[0], app.ViewOptions{Filter: filter, Sort: sortKey, Page: page})
			if err != nil {
				return err
			}
			if view.Total == 0 {
				fmt.Println("No images.")
				return nil
			}
			for _, img := range view.Items {
				modified := "unknown"
				if img.HasModTime() {
					modified = img.ModifiedAt.Local().Format("2006-01-02 15:04")
				}
				fmt.Printf("%-40s  %10d  %s\n", img.Name, img.Size, modified)
			}
			fmt.Printf("\nPage %d of %d (%d images)\n", view.Page, view.TotalPages, view.Total)
			return nil
		})
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload FOLDER PATH...",
	Short: "Upload images into a folder",
	Long: `Upload image files into a folder. A directory argument uploads the
image files directly inside it, skipping names matched by gallery.ignore
in the config or by the directory's .galleryignore file.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive")
		return withApp(cmd, true, func(ctx context.Context, a *app.GalleryApp) error {
			results, err := a.Upload(ctx, args[0], args[1:], recursive)
			if err != nil {
				return err
			}
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
				}
			}
			fmt.Printf("Uploaded %d of %d file(s)\n", len(results)-failed, len(results))
			if failed > 0 {
				return fmt.Errorf("%d file(s) failed", failed)
			}
			return nil
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm FOLDER IMAGE",
	Short: "Delete an image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app.GalleryApp) error {
			return a.DeleteImage(ctx, args[0], args[1])
		})
	},
}

var urlCmd = &cobra.Command{
	Use:   "url FOLDER IMAGE",
	Short: "Print the content URL of an image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app.GalleryApp) error {
			url, err := a.ImageURL(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Println(url)
			return nil
		})
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recorded operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		return withApp(cmd, false, func(ctx context.Context, a *app.GalleryApp) error {
			ops, err := a.History(ctx, limit)
			if err != nil {
				return err
			}
			if len(ops) == 0 {
				fmt.Println("No operations recorded.")
				return nil
			}

			for _, op := range ops {
				duration := ""
				if !op.FinishedAt.IsZero() && !op.StartedAt.IsZero() {
					duration = op.FinishedAt.Sub(op.StartedAt).Truncate(time.Millisecond).String()
				}
				subject := op.Folder
				if op.Target != "" {
					subject += " -> " + op.Target
				}
				fmt.Printf("%s  %-12s  %-10s  %d/%d  %-24s  %s\n",
					op.StartedAt.Local().Format("2006-01-02 15:04:05"),
					op.Kind,
					op.State,
					op.Done, op.Total,
					subject,
					duration,
				)
				if op.Error != "" {
					fmt.Printf("    %s\n", op.Error)
				}
			}
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Mirror the log to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	f := configInitCmd.Flags()
	f.String("store", "github", "Store type: github, proxy, memory, filesystem or s3")
	f.String("name", "", "Display name of the store")
	f.String("repo", "", "Repository as owner/name (github)")
	f.String("branch", "", "Branch to read and commit to (github, proxy)")
	f.String("api-url", "", "API base URL (github)")
	f.String("proxy-url", "", "Proxy endpoint (proxy)")
	f.String("login-url", "", "Login endpoint exchanging user and password for a session token")
	f.String("fs-root", "", "Root directory (filesystem)")
	f.String("s3-bucket", "", "Bucket (s3)")
	f.String("s3-prefix", "", "Key prefix (s3)")
	f.String("s3-region", "", "Region (s3)")
	f.String("s3-endpoint", "", "Custom endpoint such as MinIO (s3)")

	dbCmd.AddCommand(dbMigrateCmd)

	// folder subcommands
	folderCmd.AddCommand(folderCreateCmd)
	folderCmd.AddCommand(folderRenameCmd)
	folderCmd.AddCommand(folderDeleteCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringP("user", "u", "", "User name for the login endpoint")
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(foldersCmd)
	rootCmd.AddCommand(folderCmd)
	rootCmd.AddCommand(imagesCmd)
	imagesCmd.Flags().StringP("filter", "f", "", "Case-insensitive filename filter")
	imagesCmd.Flags().StringP("sort", "s", string(gallery.SortNameAsc), "Sort: name-asc, name-desc, time-asc or time-desc")
	imagesCmd.Flags().IntP("page", "p", 1, "Page number")
	uploadCmd.Flags().BoolP("recursive", "r", false, "Descend into subdirectories of directory arguments")
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(urlCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
}
