package device

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"music-action-service/internal/catalog"
)

// Channel is the Redis channel player commands are published on, so that
// every service instance can forward them to its own devices.
const Channel = "player"

const DefaultVolume = 50

type State struct {
	Queue   []string `json:"queue"`
	Playing bool     `json:"playing"`
	Volume  int      `json:"volume"`
}

// Command is what devices receive. Type is one of player.play,
// player.resume, player.pause or player.volume.
type Command struct {
	Type     string    `json:"type"`
	Listener string    `json:"listener"`
	State    State     `json:"state"`
	At       time.Time `json:"at"`
}

// Player implements catalog.Player for websocket devices. State changes only
// when the command was handed off successfully.
type Player struct {
	mu    sync.Mutex
	state State
	hub   *Hub
	rdb   *redis.Client
	now   func() time.Time
}

// NewPlayer publishes through rdb when it is set and straight to hub
// otherwise.
func NewPlayer(hub *Hub, rdb *redis.Client) *Player {
	return &Player{
		state: State{Queue: []string{}, Volume: DefaultVolume},
		hub:   hub,
		rdb:   rdb,
		now:   time.Now,
	}
}

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.state
	st.Queue = slices.Clone(p.state.Queue)
	return st
}

func (p *Player) Play(ctx context.Context, ids []string) error {
	return p.apply(ctx, "player.play", func(st *State) {
		st.Queue = slices.Clone(ids)
		st.Playing = true
	})
}

func (p *Player) Resume(ctx context.Context) error {
	return p.apply(ctx, "player.resume", func(st *State) { st.Playing = true })
}

func (p *Player) Pause(ctx context.Context) error {
	return p.apply(ctx, "player.pause", func(st *State) { st.Playing = false })
}

func (p *Player) Volume(context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Volume, nil
}

func (p *Player) SetVolume(ctx context.Context, level int) error {
	return p.apply(ctx, "player.volume", func(st *State) { st.Volume = min(max(level, 0), 100) })
}

func (p *Player) apply(ctx context.Context, typ string, change func(*State)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := p.state
	next.Queue = slices.Clone(p.state.Queue)
	change(&next)

	data, err := json.Marshal(Command{
		Type:     typ,
		Listener: catalog.ListenerFrom(ctx),
		State:    next,
		At:       p.now().UTC(),
	})
	if err != nil {
		return err
	}
	if p.rdb != nil {
		err = p.rdb.Publish(ctx, Channel, data).Err()
	} else {
		err = p.hub.Broadcast(ctx, data)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", typ, err)
	}
	p.state = next
	return nil
}

// RunSubscriber forwards player commands from Redis to the hub until ctx is
// done.
func RunSubscriber(ctx context.Context, rdb *redis.Client, hub *Hub) error {
	sub := rdb.Subscribe(ctx, Channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", Channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := hub.Broadcast(ctx, []byte(msg.Payload)); err != nil {
				log.Printf("music-action-service: forward %s message: %v", Channel, err)
				return nil
			}
		}
	}
}
