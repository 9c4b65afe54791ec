// Package app wires the storage, config, delivery queue and engine into
// one runtime context shared by the CLI and the HTTP server.
package app

import (
	"database/sql"
	"fmt"
	"log"

	"homecrew/internal/config"
	"homecrew/internal/db"
	"homecrew/internal/engine"
	"homecrew/internal/migrate"
	"homecrew/internal/notify"
	"homecrew/internal/outbox"
	"homecrew/internal/repo"
)

type Context struct {
	DB     *sql.DB
	Repo   repo.Repo
	Config *config.Config
	Queue  *outbox.Queue
	Engine engine.Engine
}

// Open boots the application for a workspace: opens the database, applies
// pending migrations, loads homecrew.yml (or defaults), and assembles the
// notification queue and engine.
func Open(workspace string) (*Context, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	r := repo.Repo{DB: conn}
	queue := outbox.New(r, buildSender(cfg), cfg)
	return &Context{
		DB:     conn,
		Repo:   r,
		Config: cfg,
		Queue:  queue,
		Engine: engine.New(conn, cfg, queue),
	}, nil
}

func (c *Context) Close() error {
	return c.DB.Close()
}

// buildSender picks SMTP delivery when mail is configured, otherwise logs
// every notification so local runs stay observable.
func buildSender(cfg *config.Config) notify.Sender {
	if cfg.Mail.Enabled {
		return notify.Mailer{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			From:     cfg.Mail.From,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
		}
	}
	return notify.LogSender{Logger: log.Default()}
}
