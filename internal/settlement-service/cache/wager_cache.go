package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/headsup-settlement/internal/settlement-service/engine"
)

// WagerCache guarda no Redis apostas que não mudam mais (Settled)
// Client: cliente Redis
// TTL: tempo de expiração dos registros (0 = sem expiração)
type WagerCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewWagerCache(c *redis.Client, ttl time.Duration) *WagerCache {
	return &WagerCache{Client: c, TTL: ttl}
}

func key(id uint64) string { return "headsup:wager:" + strconv.FormatUint(id, 10) }

// Get retorna (aposta, true) em hit; miss não é erro
func (c *WagerCache) Get(ctx context.Context, id uint64) (engine.Wager, bool, error) {
	b, err := c.Client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return engine.Wager{}, false, nil
	}
	if err != nil {
		return engine.Wager{}, false, err
	}
	var w engine.Wager
	if err := json.Unmarshal(b, &w); err != nil {
		return engine.Wager{}, false, err
	}
	return w, true, nil
}

// Set só aceita registros finais; pendentes ou com pagamento em aberto são ignorados
func (c *WagerCache) Set(ctx context.Context, w engine.Wager) error {
	if !w.Settled() {
		return nil
	}
	b, err := json.Marshal(w)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, key(w.ID), b, c.TTL).Err()
}
