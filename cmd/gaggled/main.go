// gaggled is the GaggleHome content backend: an HTTP API serving blog
// posts, themes and media, plus maintenance commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/gagglehome/backend/cms"
	"github.com/gagglehome/backend/models"
	"github.com/gagglehome/backend/util/cliutil"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {
	app := cli.App{
		Name:    "gaggled",
		Usage:   "GaggleHome content backend",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "db-url",
			Usage:   "database connection string (sqlite:// or postgres://)",
			Value:   "sqlite://./data/gaggled/gaggled.sqlite",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity (debug, info, warn, error)",
			EnvVars: []string{"GAGGLE_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log format (text or json)",
			EnvVars: []string{"GAGGLE_LOG_FMT", "LOG_FORMAT"},
		},
	}

	app.Commands = []*cli.Command{
		cmdServe,
		cmdCreateAdmin,
		cmdImportThemes,
		cmdPublishScheduled,
		cmdVersion,
	}

	return app.Run(args)
}

func setup(cctx *cli.Context) (*gorm.DB, error) {
	if _, err := cliutil.SetupSlog(cliutil.LogOptions{
		LogLevel:  cctx.String("log-level"),
		LogFormat: cctx.String("log-format"),
	}); err != nil {
		return nil, err
	}
	return cliutil.SetupDatabase(cctx.String("db-url"), cctx.Int("max-db-connections"))
}

func serverConfig(cctx *cli.Context) cms.Config {
	return cms.Config{
		JWTSigningKey:     []byte(cctx.String("jwt-secret")),
		MediaDir:          cctx.String("media-dir"),
		PublicURL:         cctx.String("public-url"),
		DefaultThemeName:  cctx.String("default-theme"),
		RedisURL:          cctx.String("redis-url"),
		OpenRouterAPIKey:  cctx.String("openrouter-api-key"),
		OpenRouterModel:   cctx.String("openrouter-model"),
		ScheduledInterval: cctx.Duration("scheduled-interval"),
	}
}

var serveFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "api-listen",
		Value:   ":8700",
		EnvVars: []string{"GAGGLE_API_LISTEN"},
	},
	&cli.StringFlag{
		Name:     "jwt-secret",
		Usage:    "signing key for auth tokens",
		Required: true,
		EnvVars:  []string{"GAGGLE_JWT_SECRET"},
	},
	&cli.StringFlag{
		Name:    "public-url",
		Usage:   "externally visible site root, used in the sitemap and feed",
		Value:   "http://localhost:8700",
		EnvVars: []string{"GAGGLE_PUBLIC_URL"},
	},
	&cli.StringFlag{
		Name:    "media-dir",
		Usage:   "directory for uploaded media; empty disables uploads",
		Value:   "./data/gaggled/media",
		EnvVars: []string{"GAGGLE_MEDIA_DIR"},
	},
	&cli.StringFlag{
		Name:    "default-theme",
		Value:   "vercel",
		EnvVars: []string{"GAGGLE_DEFAULT_THEME"},
	},
	&cli.StringFlag{
		Name:    "redis-url",
		Usage:   "redis connection string, checked by the health endpoint",
		EnvVars: []string{"REDIS_URL"},
	},
	&cli.StringFlag{
		Name:    "openrouter-api-key",
		Usage:   "API key for theme generation; empty disables it",
		EnvVars: []string{"OPENROUTER_API_KEY"},
	},
	&cli.StringFlag{
		Name:    "openrouter-model",
		EnvVars: []string{"OPENROUTER_MODEL"},
	},
	&cli.DurationFlag{
		Name:    "scheduled-interval",
		Usage:   "how often due scheduled posts are published; 0 disables",
		Value:   0,
		EnvVars: []string{"GAGGLE_SCHEDULED_INTERVAL"},
	},
}

var cmdServe = &cli.Command{
	Name:  "serve",
	Usage: "run the HTTP API",
	Flags: serveFlags,
	Action: func(cctx *cli.Context) error {
		db, err := setup(cctx)
		if err != nil {
			return err
		}

		srv, err := cms.NewServer(db, serverConfig(cctx))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return srv.RunAPI(ctx, cctx.String("api-listen"))
	},
}

var cmdCreateAdmin = &cli.Command{
	Name:      "create-admin",
	Usage:     "create or promote an admin user",
	ArgsUsage: "<handle> <email> <password>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 3 {
			return fmt.Errorf("expected handle, email and password arguments")
		}
		handle := cctx.Args().Get(0)
		email := strings.ToLower(cctx.Args().Get(1))
		password := cctx.Args().Get(2)
		if len(password) < 8 {
			return fmt.Errorf("password must be at least 8 characters")
		}

		db, err := setup(cctx)
		if err != nil {
			return err
		}
		if err := db.AutoMigrate(&models.User{}); err != nil {
			return err
		}

		hashed, err := cms.EncodePassword(password)
		if err != nil {
			return err
		}

		var u models.User
		err = db.First(&u, "handle = ?", handle).Error
		switch {
		case err == nil:
			u.Email = email
			u.Password = hashed
			u.Admin = true
			if err := db.Save(&u).Error; err != nil {
				return err
			}
			slog.Info("existing user promoted to admin", "handle", handle)
		case err == gorm.ErrRecordNotFound:
			u = models.User{
				Handle:   handle,
				Email:    email,
				Password: hashed,
				Admin:    true,
			}
			if err := db.Create(&u).Error; err != nil {
				return err
			}
			slog.Info("admin user created", "handle", handle)
		default:
			return err
		}
		return nil
	},
}

// themeFile is the on-disk schema for import-themes: one JSON document
// per theme.
type themeFile struct {
	Name        string          `json:"name"`
	DisplayName string          `json:"display_name"`
	Description string          `json:"description"`
	Version     string          `json:"version"`
	CSSVars     json.RawMessage `json:"css_vars"`
}

var cmdImportThemes = &cli.Command{
	Name:      "import-themes",
	Usage:     "load system themes from a directory of JSON files",
	ArgsUsage: "<dir>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return fmt.Errorf("expected a theme directory argument")
		}
		dir := cctx.Args().Get(0)

		db, err := setup(cctx)
		if err != nil {
			return err
		}
		if err := db.AutoMigrate(&models.Theme{}); err != nil {
			return err
		}

		paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no theme files found in %s", dir)
		}

		for _, p := range paths {
			raw, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			var tf themeFile
			if err := json.Unmarshal(raw, &tf); err != nil {
				return fmt.Errorf("parsing %s: %w", p, err)
			}
			if tf.Name == "" || !models.ValidThemeName(tf.Name) {
				return fmt.Errorf("%s: invalid theme name %q", p, tf.Name)
			}
			if err := models.ValidateThemeVars(tf.CSSVars); err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			if tf.Version == "" {
				tf.Version = "1.0.0"
			}

			// Import is an upsert: existing system themes are refreshed
			// in place so re-running is safe.
			var theme models.Theme
			err = db.First(&theme, "name = ?", tf.Name).Error
			switch {
			case err == nil:
				theme.DisplayName = tf.DisplayName
				theme.Description = tf.Description
				theme.CSSVars = tf.CSSVars
				theme.Version = tf.Version
				theme.IsSystemTheme = true
				if err := db.Save(&theme).Error; err != nil {
					return err
				}
				slog.Info("theme updated", "name", tf.Name)
			case err == gorm.ErrRecordNotFound:
				theme = models.Theme{
					Name:          tf.Name,
					DisplayName:   tf.DisplayName,
					Description:   tf.Description,
					CSSVars:       tf.CSSVars,
					Version:       tf.Version,
					IsSystemTheme: true,
					IsActive:      true,
				}
				if err := db.Create(&theme).Error; err != nil {
					return err
				}
				slog.Info("theme imported", "name", tf.Name)
			default:
				return err
			}
		}
		return nil
	},
}

var cmdVersion = &cli.Command{
	Name:  "version",
	Usage: "print the build version",
	Action: func(cctx *cli.Context) error {
		fmt.Println(versioninfo.Short())
		return nil
	},
}

var cmdPublishScheduled = &cli.Command{
	Name:  "publish-scheduled",
	Usage: "publish scheduled posts whose publish date has passed, then exit",
	Action: func(cctx *cli.Context) error {
		db, err := setup(cctx)
		if err != nil {
			return err
		}

		n, err := cms.PublishDuePosts(db, time.Now().UTC())
		if err != nil {
			return err
		}
		slog.Info("done", "published", n)
		return nil
	},
}
