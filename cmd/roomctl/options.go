package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/cwrk-planet/roomsync/internal/negotiation"
)

const (
	DefaultServer = "http://localhost:4000"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
)

// Options — значения флагов. Пустая строка значит "флаг не задан".
type Options struct {
	Server   string
	GRPC     string
	STUN     string
	TURN     string
	TURNUser string
	TURNPass string
	Name     string
	LogLevel string
}

type Settings struct {
	Server     string
	GRPC       string // host:port; пусто — REST
	ICEServers []negotiation.ICEServer
	Name       string
	LogLevel   string
}

// Load: флаг > переменная окружения > значение по умолчанию.
func Load(opts Options, getenv func(string) string) (*Settings, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	pick := func(flag, env, def string) string {
		if flag != "" {
			return flag
		}
		if v := strings.TrimSpace(getenv(env)); v != "" {
			return v
		}
		return def
	}

	server := strings.TrimRight(pick(opts.Server, "ROOMSYNC_SERVER", DefaultServer), "/")
	u, err := url.Parse(server)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q: want http(s)://host[:port]", server)
	}

	s := &Settings{
		Server:   server,
		GRPC:     pick(opts.GRPC, "ROOMSYNC_GRPC", ""),
		Name:     pick(opts.Name, "ROOMSYNC_NAME", ""),
		LogLevel: pick(opts.LogLevel, "ROOMSYNC_LOG_LEVEL", "warn"),
	}

	if stun := pick(opts.STUN, "STUN_SERVER", DefaultSTUN); stun != "none" {
		s.ICEServers = append(s.ICEServers, negotiation.ICEServer{URLs: []string{stun}})
	}
	if turn := pick(opts.TURN, "TURN_SERVER", ""); turn != "" {
		s.ICEServers = append(s.ICEServers, negotiation.ICEServer{
			URLs:       []string{turn},
			Username:   pick(opts.TURNUser, "TURN_USERNAME", ""),
			Credential: pick(opts.TURNPass, "TURN_PASSWORD", ""),
		})
	}
	return s, nil
}
