package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"CollabBoard/internal/board"
	"CollabBoard/internal/config"
	lbnet "CollabBoard/internal/net"
	"CollabBoard/internal/presence"
	"CollabBoard/internal/ui"
)

const browseTimeout = 3 * time.Second

func main() {
	configPath := flag.String("config", "collabboard.toml", "path to a TOML config file")
	room := flag.String("room", "", "room to host or join")
	port := flag.Int("port", -1, "port the host listens on (0 picks a free one)")
	discover := flag.Bool("discover", false, "look for a board on the local network and join it")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [%shost:port/room]\n", os.Args[0], lbnet.LinkScheme)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[MAIN] %v", err)
	}
	if *room != "" {
		cfg.Room = *room
	}
	if *port >= 0 {
		cfg.Port = *port
	}
	if *discover {
		cfg.Discover = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[MAIN] %v", err)
	}

	link := flag.Arg(0)
	if link == "" && cfg.Discover {
		link = discoverBoard()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if link != "" {
		runClient(ctx, cfg, link)
	} else {
		runHost(ctx, cfg)
	}
}

func sessionOptions(cfg config.Config) board.Options {
	user := presence.NewUser()
	if cfg.Name != "" {
		user.Name = cfg.Name
	}
	if cfg.Color != "" {
		user.Color = cfg.Color
	}
	return board.Options{
		User:          user,
		Theme:         cfg.ThemeMode(),
		Grid:          cfg.GridMode(),
		CaptureWindow: cfg.CaptureWindow,
	}
}

func startPeer(ctx context.Context, cfg config.Config, app *ui.App, url string) {
	peer := lbnet.NewPeer(url, app.Session.Store, app.Session.Presence, lbnet.PeerOptions{
		HeartbeatInterval: cfg.HeartbeatInterval,
		PresenceTimeout:   cfg.PresenceTimeout,
		OnStatus:          app.PeerStatus,
	})
	go peer.Run(ctx)
}

func runHost(ctx context.Context, cfg config.Config) {
	log.Println("[HOST] Starting as HOST")
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		log.Fatalf("[HOST] Failed to start server: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	hub := lbnet.NewHub()
	srv := &http.Server{Handler: lbnet.NewServeMux(hub), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Printf("[HOST] Hub listening on port %d", port)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[HOST] Server stopped: %v", err)
		}
	}()

	mdnsServer, err := lbnet.Advertise(port, cfg.Room)
	if err != nil {
		log.Printf("[MDNS] Not advertising: %v", err)
	}

	hostIP, err := lbnet.GetOutgoingIP()
	if err != nil {
		hostIP = "127.0.0.1"
	}
	shareLink := lbnet.ShareLink(hostIP, port, cfg.Room)
	log.Printf("[HOST] Share link: %s", shareLink)

	app := ui.NewApp(sessionOptions(cfg), shareLink)
	startPeer(ctx, cfg, app, lbnet.RoomURL(fmt.Sprintf("127.0.0.1:%d", port), cfg.Room))
	app.Run()

	if mdnsServer != nil {
		mdnsServer.Shutdown()
	}
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[HOST] Shutdown: %v", err)
	}
}

func runClient(ctx context.Context, cfg config.Config, link string) {
	log.Println("[CLIENT] Starting as CLIENT")
	addr, room, err := lbnet.ParseLink(link)
	if err != nil {
		log.Fatalf("[CLIENT] %v", err)
	}
	app := ui.NewApp(sessionOptions(cfg), link)
	startPeer(ctx, cfg, app, lbnet.RoomURL(addr, room))
	app.Run()
}

// discoverBoard returns the link of the first board found on the local
// network, or "" to host instead.
func discoverBoard() string {
	ctx, cancel := context.WithTimeout(context.Background(), browseTimeout+time.Second)
	defer cancel()
	found, err := lbnet.Browse(ctx, browseTimeout)
	if err != nil {
		log.Printf("[MDNS] Browse failed: %v", err)
	}
	if len(found) == 0 {
		log.Println("[MDNS] No boards found, hosting a new one")
		return ""
	}
	for _, svc := range found {
		log.Printf("[MDNS] Found %s on %s", svc.Link(), svc.Host)
	}
	return found[0].Link()
}
