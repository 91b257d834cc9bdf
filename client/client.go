// Package client wires the API client components into a single context
// object: persistence, the event bus, the session manager, the request
// executor and the response cache.
package client

import (
	"context"
	"net/http"

	"github.com/agentuity/go-apiclient/api"
	"github.com/agentuity/go-apiclient/cache"
	"github.com/agentuity/go-apiclient/config"
	"github.com/agentuity/go-apiclient/credential"
	"github.com/agentuity/go-apiclient/crypto"
	"github.com/agentuity/go-apiclient/eventing"
	"github.com/agentuity/go-apiclient/logger"
	"github.com/agentuity/go-apiclient/network"
	"github.com/agentuity/go-apiclient/session"
	"github.com/agentuity/go-apiclient/store"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// SettingDeviceID holds the device id bound into device credentials.
const SettingDeviceID = "DEVICE_ID"

type options struct {
	logger       logger.Logger
	store        store.Store
	httpClient   *http.Client
	connectivity network.Connectivity
}

type Option func(*options)

func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStore uses st instead of the backend selected by the configuration.
// The client closes it.
func WithStore(st store.Store) Option {
	return func(o *options) { o.store = st }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func WithConnectivity(c network.Connectivity) Option {
	return func(o *options) { o.connectivity = c }
}

// Client owns every component of one API client instance.
type Client struct {
	config  *config.Config
	logger  logger.Logger
	store   store.Store
	redis   *redis.Client
	bus     eventing.Bus
	codec   *credential.Codec
	session *session.Manager
	cache   *cache.ResponseCache
}

// New builds a Client for cfg. The session is restored from the store.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.Wrap(api.ErrMissingParameters, "config is required")
	}
	o := options{
		connectivity: network.System(),
		httpClient:   &http.Client{Timeout: cfg.RequestTimeout.Std()},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.NewConsoleLogger(logger.LevelNone)
	}

	c := &Client{config: cfg, logger: o.logger, store: o.store}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	if c.store == nil {
		if err := c.openStore(); err != nil {
			return nil, err
		}
	}

	cipher, err := crypto.NewCipher(cfg.Secret)
	if err != nil {
		return nil, err
	}
	var signer *crypto.Signer
	if cfg.HMACKey != "" {
		if signer, err = crypto.NewSigner(cfg.HMACKey, cfg.HMACSalt); err != nil {
			return nil, err
		}
	}
	deviceID, err := c.deviceID(ctx)
	if err != nil {
		return nil, err
	}
	c.codec = credential.NewCodec(cipher, cfg.MobileKey, deviceID)

	exec, err := api.New(api.Config{
		Host:         cfg.Host,
		HTTPSOnly:    cfg.HTTPSOnly,
		AppName:      cfg.AppName,
		Language:     cfg.Language,
		Signer:       signer,
		Client:       o.httpClient,
		Connectivity: o.connectivity,
		Logger:       o.logger,
	})
	if err != nil {
		return nil, err
	}

	c.bus = eventing.NewLocalBus(context.WithoutCancel(ctx), o.logger)
	c.session, err = session.New(ctx, session.Config{
		Executor:   exec,
		Store:      c.store,
		Codec:      c.codec,
		Bus:        c.bus,
		Logger:     o.logger,
		LoginPath:  cfg.LoginPath,
		LogoutPath: cfg.LogoutPath,
		HTTPSLogin: cfg.HTTPSLogin,
	})
	if err != nil {
		return nil, err
	}
	c.cache, err = cache.New(ctx, c.store,
		cache.WithExpires(cfg.CacheTTL.Std()),
		cache.WithLogger(o.logger),
		cache.WithEvents(c.bus),
		cache.WithSession(c.session),
	)
	if err != nil {
		return nil, err
	}
	ok = true
	return c, nil
}

func (c *Client) openStore() error {
	switch c.config.Storage {
	case config.StorageMemory:
		c.store = store.NewMemory()
	case config.StorageFile:
		st, err := store.NewFile(c.config.StorageDir)
		if err != nil {
			return err
		}
		c.store = st
		c.logger.Debug("using file storage in %s", c.config.StorageDir)
	case config.StorageRedis:
		opts, err := redis.ParseURL(c.config.RedisURL)
		if err != nil {
			return errors.Wrap(err, "error parsing redis url")
		}
		c.redis = redis.NewClient(opts)
		c.store = store.NewRedis(c.redis, c.config.RedisKey)
		c.logger.Debug("using redis storage at %s", api.MaskURL(c.config.RedisURL))
	default:
		return errors.Wrapf(api.ErrMissingParameters, "unknown storage %q", c.config.Storage)
	}
	return nil
}

// deviceID returns the persisted device id, deriving and saving it on first use.
func (c *Client) deviceID(ctx context.Context) (string, error) {
	id, ok, err := c.store.GetSetting(ctx, SettingDeviceID)
	if err != nil {
		return "", errors.Wrap(err, "error reading device id")
	}
	if ok && id != "" {
		return id, nil
	}
	id = credential.MachineID(ctx)
	if err := c.store.SaveSettings(ctx, map[string]string{SettingDeviceID: id}, nil); err != nil {
		return "", errors.Wrap(err, "error saving device id")
	}
	return id, nil
}

func (c *Client) Config() *config.Config {
	return c.config
}

func (c *Client) Session() *session.Manager {
	return c.session
}

func (c *Client) Cache() *cache.ResponseCache {
	return c.cache
}

func (c *Client) Bus() eventing.Bus {
	return c.bus
}

// Executor returns the executor whose authenticated requests use the session.
func (c *Client) Executor() *api.Executor {
	return c.session.Executor()
}

// Close releases every component. It is safe on a partially built client.
func (c *Client) Close() error {
	var errs []error
	if c.cache != nil {
		errs = append(errs, c.cache.Close())
	}
	if c.session != nil {
		errs = append(errs, c.session.Close())
	}
	if c.bus != nil {
		errs = append(errs, c.bus.Close())
	}
	if c.store != nil {
		errs = append(errs, c.store.Close())
	}
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	return errors.Join(errs...)
}
