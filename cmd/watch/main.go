package main

import (
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"scenecraft.ai/internal/logging"
	"scenecraft.ai/internal/observerproto"
)

func main() {
	var (
		url   = flag.String("url", "ws://127.0.0.1:8090/observer/ws", "observer ws url")
		every = flag.Int("every", 20, "forward one tick in N")
		teams = flag.String("teams", "", "comma separated team filter (optional)")
		level = flag.String("log", "info", "log level")
	)
	flag.Parse()

	logger := logging.New(*level, true, os.Stdout).With().Str("component", "watch").Logger()
	filter, err := parseTeams(*teams)
	if err != nil {
		logger.Fatal().Err(err).Msg("bad -teams")
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("dial")
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		Every:           *every,
		Teams:           filter,
	}
	if err := conn.WriteJSON(sub); err != nil {
		logger.Fatal().Err(err).Msg("send SUBSCRIBE")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("read")
			}
			return
		}
		var tm observerproto.TickMsg
		if err := json.Unmarshal(msg, &tm); err != nil || tm.Type != observerproto.TypeTick {
			continue
		}
		logTick(logger, tm)
	}
}

func logTick(logger zerolog.Logger, tm observerproto.TickMsg) {
	ev := logger.Info().
		Uint64("tick", tm.Tick).
		Int("backlog", tm.PathBacklog).
		Float64("investment", tm.TotalInvestment)
	if tm.BuildRound {
		ev = ev.Bool("build_round", true)
	}
	if tm.FullRecompute || tm.PartialRecompute {
		ev = ev.Int("changed_nodes", tm.ChangedNodes)
	}
	for _, ts := range tm.Teams {
		ev = ev.Str("team"+strconv.Itoa(ts.Team), ts.Visibility)
	}
	ev.Msg(tm.SceneID)
	for _, p := range tm.Players {
		if p.Placed == 0 && p.AIPlanMoved == 0 {
			continue
		}
		logger.Info().
			Uint64("tick", tm.Tick).
			Int("player", p.Player).
			Int("team", p.Team).
			Float64("spent", p.Spent).
			Int("placed", p.Placed).
			Float64("budget", p.Budget).
			Msg("build")
	}
}

func parseTeams(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
