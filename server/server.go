// Package server exposes the local control and status HTTP API. It is
// the stand-in for the host platform's UI events: focus, foreground and
// page-selection transitions arrive here and are posted to the session.
package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"skypager/session"
)

// ServerConfig wires the control server.
type ServerConfig struct {
	Session     *session.Session
	Broadcaster *Broadcaster
}

// Server returns a fiber.App serving the skypager control API.
func Server(config *ServerConfig) *fiber.App {
	sess := config.Session
	bc := config.Broadcaster

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"latency": time.Since(start),
		}).Debug("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))

	app.Get("/status", func(c *fiber.Ctx) error {
		status, err := sess.Status(c.Context())
		if err != nil {
			return c.Status(500).SendString("Error getting status")
		}
		return c.JSON(status)
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Post("/control/soft-reset", func(c *fiber.Ctx) error {
		sess.Post(session.SoftResetEvent{})
		return c.SendStatus(202)
	})

	app.Post("/control/foreground", func(c *fiber.Ctx) error {
		sess.Post(session.AppForegroundEvent{Foreground: true})
		return c.SendStatus(202)
	})

	app.Post("/control/background", func(c *fiber.Ctx) error {
		sess.Post(session.AppForegroundEvent{Foreground: false})
		return c.SendStatus(202)
	})

	app.Post("/control/screen/focus", func(c *fiber.Ctx) error {
		sess.Post(session.ScreenFocusEvent{Focused: true})
		return c.SendStatus(202)
	})

	app.Post("/control/screen/blur", func(c *fiber.Ctx) error {
		sess.Post(session.ScreenFocusEvent{Focused: false})
		return c.SendStatus(202)
	})

	app.Post("/control/pages/:index/select", func(c *fiber.Ctx) error {
		index, err := strconv.Atoi(c.Params("index"))
		if err != nil || index < 0 {
			return c.Status(400).SendString("Invalid page index")
		}
		sess.Post(session.SelectPageEvent{Index: index})
		return c.SendStatus(202)
	})

	app.Post("/control/pinned", func(c *fiber.Ctx) error {
		var body struct {
			URIs []string `json:"uris"`
		}
		if err := c.BodyParser(&body); err != nil {
			return c.Status(400).SendString("Invalid pinned feed body")
		}
		sess.Post(session.PinnedFeedsEvent{URIs: body.URIs})
		return c.SendStatus(202)
	})

	app.Post("/control/pinned/reload", func(c *fiber.Ctx) error {
		sess.Post(session.ReloadPinnedEvent{})
		return c.SendStatus(202)
	})

	app.Get("/events/sse", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("Transfer-Encoding", "chunked")

		key := uuid.New().String()
		notices := make(chan Notice, 10)

		bc.AddClient(key, notices)

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer bc.RemoveClient(key)

			keepAlive := time.NewTicker(5 * time.Second)
			defer keepAlive.Stop()

			fmt.Fprintf(w, "event: init\ndata: %s\n\n", key)
			if err := w.Flush(); err != nil {
				log.Errorf("Failed to send init event: %v", err)
				return
			}

			for {
				select {
				case <-keepAlive.C:
					if _, err := fmt.Fprintf(w, "event: ping\ndata: \n\n"); err != nil {
						return
					}
					if err := w.Flush(); err != nil {
						return
					}
				case notice, ok := <-notices:
					if !ok {
						return
					}
					data, err := json.Marshal(notice)
					if err != nil {
						log.Errorf("Error marshalling notice for client %s: %v", key, err)
						continue
					}
					if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", notice.Kind, data); err != nil {
						return
					}
					if err := w.Flush(); err != nil {
						return
					}
				}
			}
		}))

		return nil
	})

	return app
}
