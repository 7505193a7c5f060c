package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"weylus/internal/core/domain"
	"weylus/internal/core/ports"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	fieldServerURL       = "server_url"
	fieldAccessCode      = "access_code"
	fieldVideo           = "video"
	fieldPalmRejection   = "palm_rejection"
	fieldPressureGamma   = "pressure_gamma"
	fieldShowPerformance = "show_performance"
	fieldServers         = "servers"
)

// RedisSettingsRepository stores settings as a hash and announces every
// change on a pub/sub channel, so several clients sharing a profile follow
// each other's edits.
type RedisSettingsRepository struct {
	client  *redis.Client
	key     string
	channel string
	logger  *zap.SugaredLogger
}

var _ ports.SettingsStore = (*RedisSettingsRepository)(nil)

func NewRedisSettingsRepository(client *redis.Client, key string, logger *zap.SugaredLogger) *RedisSettingsRepository {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &RedisSettingsRepository{
		client:  client,
		key:     key,
		channel: key + ":changes",
		logger:  logger,
	}
}

// Load returns the stored settings. Missing fields take their defaults.
func (r *RedisSettingsRepository) Load(ctx context.Context) (domain.Settings, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("%w: failed to read settings: %v", domain.ErrSettingsStore, err)
	}
	return decodeFields(fields)
}

func (r *RedisSettingsRepository) Save(ctx context.Context, settings domain.Settings) error {
	fields, err := encodeFields(settings)
	if err != nil {
		return err
	}
	snapshot, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.key, fields)
		pipe.Publish(ctx, r.channel, snapshot)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: failed to save settings: %v", domain.ErrSettingsStore, err)
	}
	return nil
}

func (r *RedisSettingsRepository) Clear(ctx context.Context) error {
	snapshot, err := json.Marshal(domain.DefaultSettings())
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		pipe.Publish(ctx, r.channel, snapshot)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: failed to clear settings: %v", domain.ErrSettingsStore, err)
	}
	return nil
}

func (r *RedisSettingsRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSettingsStore, err)
	}
	return nil
}

// Watch subscribes to change notifications until ctx is done.
func (r *RedisSettingsRepository) Watch(ctx context.Context) (<-chan domain.Settings, error) {
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("%w: failed to subscribe: %v", domain.ErrSettingsStore, err)
	}

	out := make(chan domain.Settings, 1)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var s domain.Settings
				if err := json.Unmarshal([]byte(msg.Payload), &s); err != nil {
					r.logger.Warnw("failed to unmarshal settings change",
						"error", err,
						"channel", msg.Channel,
					)
					continue
				}
				select {
				case <-out:
				default:
				}
				out <- s
			}
		}
	}()
	return out, nil
}

func encodeFields(s domain.Settings) (map[string]interface{}, error) {
	video, err := json.Marshal(s.Video)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal video settings: %w", err)
	}
	palm, err := json.Marshal(s.PalmRejection)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal palm rejection settings: %w", err)
	}
	servers, err := json.Marshal(s.Servers)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal saved servers: %w", err)
	}

	return map[string]interface{}{
		fieldServerURL:       s.ServerURL,
		fieldAccessCode:      s.AccessCode,
		fieldVideo:           string(video),
		fieldPalmRejection:   string(palm),
		fieldPressureGamma:   strconv.FormatFloat(s.PressureGamma, 'f', -1, 64),
		fieldShowPerformance: strconv.FormatBool(s.ShowPerformance),
		fieldServers:         string(servers),
	}, nil
}

func decodeFields(fields map[string]string) (domain.Settings, error) {
	s := domain.DefaultSettings()
	s.ServerURL = fields[fieldServerURL]
	s.AccessCode = fields[fieldAccessCode]

	if v, ok := fields[fieldVideo]; ok && v != "" {
		if err := json.Unmarshal([]byte(v), &s.Video); err != nil {
			return s, fmt.Errorf("invalid %s field: %w", fieldVideo, err)
		}
	}
	if v, ok := fields[fieldPalmRejection]; ok && v != "" {
		if err := json.Unmarshal([]byte(v), &s.PalmRejection); err != nil {
			return s, fmt.Errorf("invalid %s field: %w", fieldPalmRejection, err)
		}
	}
	if v, ok := fields[fieldPressureGamma]; ok && v != "" {
		gamma, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return s, fmt.Errorf("invalid %s field: %w", fieldPressureGamma, err)
		}
		s.PressureGamma = gamma
	}
	if v, ok := fields[fieldShowPerformance]; ok && v != "" {
		show, err := strconv.ParseBool(v)
		if err != nil {
			return s, fmt.Errorf("invalid %s field: %w", fieldShowPerformance, err)
		}
		s.ShowPerformance = show
	}
	if v, ok := fields[fieldServers]; ok && v != "" && v != "null" {
		if err := json.Unmarshal([]byte(v), &s.Servers); err != nil {
			return s, fmt.Errorf("invalid %s field: %w", fieldServers, err)
		}
	}
	return s, nil
}

func decodeLegacySnapshot(raw string) (domain.Settings, error) {
	s := domain.DefaultSettings()
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return s, fmt.Errorf("invalid legacy settings snapshot: %w", err)
	}
	return s, nil
}
