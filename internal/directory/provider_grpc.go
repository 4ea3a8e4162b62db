//go:build protogen

package directory

import (
	"context"
	"time"

	directoryv1 "github.com/ventecrm/booking-engine/protos/gen/directory/v1"
	"github.com/ventecrm/booking-engine/libs/grpcx"
)

type Host struct {
	ID          string
	DisplayName string
	Active      bool
}

type Provider interface {
	GetHost(ctx context.Context, id string) (Host, error)
}

type grpcProvider struct {
	client directoryv1.DirectoryServiceClient
}

func NewProvider(addr string) (Provider, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcProvider{client: directoryv1.NewDirectoryServiceClient(conn)}, nil
}

func (p *grpcProvider) GetHost(ctx context.Context, id string) (Host, error) {
	resp, err := p.client.GetUser(ctx, &directoryv1.GetUserRequest{UserId: id})
	if err != nil {
		return Host{}, err
	}
	return Host{
		ID:          resp.GetUserId(),
		DisplayName: resp.GetDisplayName(),
		Active:      resp.GetActive(),
	}, nil
}
