package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hanko-field/variants/internal/platform/config"
)

const (
	dialTimeout        = 10 * time.Second
	envEmulatorHost    = "FIRESTORE_EMULATOR_HOST"
	envGoogleProjectID = "GOOGLE_CLOUD_PROJECT"
)

// ErrProviderClosed is returned by a Provider after Close.
var ErrProviderClosed = errors.New("firestore: provider is closed")

// Provider dials the catalog's Firestore client on first use and shares it between repositories.
// A failed dial is retried by the next caller.
type Provider struct {
	cfg        config.FirestoreConfig
	clientOpts []option.ClientOption

	mu     sync.Mutex
	client *firestore.Client
	closed bool
}

// ProviderOption customises a Provider.
type ProviderOption func(*Provider)

// WithClientOptions appends client options used when dialing.
func WithClientOptions(opts ...option.ClientOption) ProviderOption {
	return func(p *Provider) {
		p.clientOpts = append(p.clientOpts, opts...)
	}
}

// NewProvider returns a Provider for cfg. No connection is made until Client is called.
func NewProvider(cfg config.FirestoreConfig, opts ...ProviderOption) *Provider {
	p := &Provider{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Client returns the shared client, dialing it if needed.
func (p *Provider) Client(ctx context.Context) (*firestore.Client, error) {
	if ctx == nil {
		return nil, errors.New("firestore: context is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrProviderClosed
	}
	if p.client != nil {
		return p.client, nil
	}

	projectID, err := p.projectID()
	if err != nil {
		return nil, err
	}
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	client, err := firestore.NewClient(dialCtx, projectID, p.dialOptions()...)
	if err != nil {
		return nil, fmt.Errorf("firestore: create client for %s: %w", projectID, err)
	}
	p.client = client
	return client, nil
}

// BulkWriter opens a bulk writer on the shared client. Callers must End it.
func (p *Provider) BulkWriter(ctx context.Context) (*firestore.BulkWriter, error) {
	client, err := p.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.BulkWriter(ctx), nil
}

// Close releases the client. The Provider cannot be used afterwards.
func (p *Provider) Close(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	p.mu.Lock()
	client := p.client
	p.client = nil
	p.closed = true
	p.mu.Unlock()
	if client == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- client.Close()
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (p *Provider) projectID() (string, error) {
	if id := strings.TrimSpace(p.cfg.ProjectID); id != "" {
		return id, nil
	}
	if id := strings.TrimSpace(os.Getenv(envGoogleProjectID)); id != "" {
		return id, nil
	}
	return "", errors.New("firestore: project id is required")
}

// dialOptions points the client at the emulator when one is configured. The emulator also
// expects FIRESTORE_EMULATOR_HOST so the client sends its owner credentials.
func (p *Provider) dialOptions() []option.ClientOption {
	opts := append([]option.ClientOption(nil), p.clientOpts...)
	host := p.emulatorHost()
	if host == "" {
		return opts
	}
	if os.Getenv(envEmulatorHost) == "" {
		_ = os.Setenv(envEmulatorHost, host)
	}
	return append(opts,
		option.WithoutAuthentication(),
		option.WithEndpoint(host),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
}

func (p *Provider) emulatorHost() string {
	if host := strings.TrimSpace(p.cfg.EmulatorHost); host != "" {
		return host
	}
	return strings.TrimSpace(os.Getenv(envEmulatorHost))
}
