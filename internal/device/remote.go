package device

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/danielpatrickdp/projector-align/internal/fitness"
	"github.com/danielpatrickdp/projector-align/internal/transform"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region methods
const (
	methodList   = "/aligner.v1.Projector/List"
	methodStart  = "/aligner.v1.Projector/Start"
	methodStatus = "/aligner.v1.Projector/Status"
	methodCommit = "/aligner.v1.Projector/Commit"
)

// #endregion methods

// #region client-struct
// RemoteClient talks to a device host over gRPC. Payloads are structpb.Struct messages so
// no generated stubs are needed.
type RemoteClient struct {
	conn   *grpc.ClientConn
	client grpc.ClientConnInterface
	health healthpb.HealthClient
}

// #endregion client-struct

// #region constructor
// NewRemoteClient connects to the device host at addr.
func NewRemoteClient(addr string) (*RemoteClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	c := NewRemoteClientWithConn(conn)
	c.conn = conn
	return c, nil
}

// NewRemoteClientWithConn creates a RemoteClient over an injected connection.
// Used for testing without a real gRPC server.
func NewRemoteClientWithConn(cc grpc.ClientConnInterface) *RemoteClient {
	return &RemoteClient{client: cc, health: healthpb.NewHealthClient(cc)}
}

// Close shuts down the gRPC connection.
func (c *RemoteClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion constructor

// #region resolve
// Resolve lists the host's devices and returns the single projector carrying tag.
func (c *RemoteClient) Resolve(ctx context.Context, tag string) (Device, error) {
	resp, err := c.call(ctx, methodList, map[string]any{"tag": tag})
	if err != nil {
		return nil, fmt.Errorf("list rpc: %w", err)
	}

	marker := TagMarker(tag)
	var found []*Remote
	for _, v := range resp.GetFields()["devices"].GetListValue().GetValues() {
		f := v.GetStructValue().GetFields()
		name, kind := f["name"].GetStringValue(), f["kind"].GetStringValue()
		if kind != KindProjector || !strings.Contains(name, marker) {
			continue
		}
		found = append(found, &Remote{client: c, id: f["id"].GetStringValue(), name: name})
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w %s", ErrNotFound, marker)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w %s: %d projectors", ErrAmbiguous, marker, len(found))
	}
}

// #endregion resolve

// #region call
func (c *RemoteClient) call(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	out := &structpb.Struct{}
	if err := c.client.Invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion call

// #region remote-device
// Remote is a projector hosted behind a RemoteClient.
type Remote struct {
	client *RemoteClient
	id     string
	name   string

	mu     sync.Mutex
	staged transform.Transform
}

func (r *Remote) Name() string { return r.name }

func (r *Remote) Kind() string { return KindProjector }

func (r *Remote) Start(ctx context.Context) error {
	if _, err := r.client.call(ctx, methodStart, map[string]any{"id": r.id}); err != nil {
		return fmt.Errorf("start rpc: %w", err)
	}
	return nil
}

// Status reads counters from the host. Working comes from the standard health service,
// keyed by device id.
func (r *Remote) Status(ctx context.Context) (Status, error) {
	h, err := r.client.health.Check(ctx, &healthpb.HealthCheckRequest{Service: r.id})
	if err != nil {
		return Status{}, fmt.Errorf("health rpc: %w", err)
	}
	resp, err := r.client.call(ctx, methodStatus, map[string]any{"id": r.id})
	if err != nil {
		return Status{}, fmt.Errorf("status rpc: %w", err)
	}

	f := resp.GetFields()
	st := Status{
		Working:    h.GetStatus() == healthpb.HealthCheckResponse_SERVING,
		Projecting: f["projecting"].GetBoolValue(),
		Counters: fitness.Counters{
			Total:     int(f["total"].GetNumberValue()),
			Remaining: int(f["remaining"].GetNumberValue()),
			Buildable: int(f["buildable"].GetNumberValue()),
		},
	}
	if p := f["position"].GetStringValue(); p != "" {
		if st.Position, err = transform.ParseVec3(p); err != nil {
			return Status{}, fmt.Errorf("status position: %w", err)
		}
	}
	for _, v := range f["structure"].GetListValue().GetValues() {
		cell, err := transform.ParseVec3(v.GetStringValue())
		if err != nil {
			return Status{}, fmt.Errorf("status structure: %w", err)
		}
		st.Structure = append(st.Structure, cell)
	}
	return st, nil
}

func (r *Remote) SetOffset(v transform.Vec3) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staged.Offset = v
}

func (r *Remote) SetRotation(v transform.Vec3) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staged.Rotation = v
}

// Commit sends the staged offset and rotation in one call.
func (r *Remote) Commit(ctx context.Context) error {
	r.mu.Lock()
	t := r.staged
	r.mu.Unlock()

	_, err := r.client.call(ctx, methodCommit, map[string]any{
		"id":       r.id,
		"offset":   t.Offset.String(),
		"rotation": t.Rotation.String(),
	})
	if err != nil {
		return fmt.Errorf("commit rpc: %w", err)
	}
	return nil
}

// #endregion remote-device
