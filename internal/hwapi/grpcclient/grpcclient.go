// Package grpcclient implements hwapi.Client against a hardware shim
// process reachable over gRPC.
//
// Messages are plain Go structs marshaled with a JSON codec registered
// under the "json" content-subtype, rather than generated protobuf
// stubs: the wire format is still framed and transported by
// google.golang.org/grpc (keepalive, interceptors, load balancing),
// but the request/response shapes stay hand-written Go types matching
// hwapi's primitives one-to-one. See DESIGN.md for the rationale.
package grpcclient

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	"netorch/internal/hwapi"
)

const jsonCodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return jsonCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

const serviceMethodPrefix = "/netorch.hwapi.v1.HardwareAPI/"

// Client is a gRPC-backed hwapi.Client.
type Client struct {
	conn *grpc.ClientConn
}

var _ hwapi.Client = (*Client)(nil)

// Dial opens a connection to a hardware shim listening at addr.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("grpcclient: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	return c.conn.Invoke(ctx, serviceMethodPrefix+method, req, resp)
}

type bulkCreateRouteRequest struct {
	Entries      []hwapi.RouteEntry   `json:"entries"`
	Attrs        [][]hwapi.Attribute  `json:"attrs"`
	IgnoreErrors bool                 `json:"ignore_errors"`
}

type bulkStatusResponse struct {
	Statuses []hwapi.Status `json:"statuses"`
}

func (c *Client) BulkCreateRoute(ctx context.Context, entries []hwapi.RouteEntry, attrs [][]hwapi.Attribute, ignoreErrors bool) ([]hwapi.Status, error) {
	var resp bulkStatusResponse
	err := c.invoke(ctx, "BulkCreateRoute", &bulkCreateRouteRequest{Entries: entries, Attrs: attrs, IgnoreErrors: ignoreErrors}, &resp)
	return resp.Statuses, err
}

type bulkSetRouteAttributeRequest struct {
	Entries      []hwapi.RouteEntry  `json:"entries"`
	Attrs        []hwapi.Attribute   `json:"attrs"`
	IgnoreErrors bool                `json:"ignore_errors"`
}

func (c *Client) BulkSetRouteAttribute(ctx context.Context, entries []hwapi.RouteEntry, attrs []hwapi.Attribute, ignoreErrors bool) ([]hwapi.Status, error) {
	var resp bulkStatusResponse
	err := c.invoke(ctx, "BulkSetRouteAttribute", &bulkSetRouteAttributeRequest{Entries: entries, Attrs: attrs, IgnoreErrors: ignoreErrors}, &resp)
	return resp.Statuses, err
}

type bulkRemoveRouteRequest struct {
	Entries      []hwapi.RouteEntry `json:"entries"`
	IgnoreErrors bool               `json:"ignore_errors"`
}

func (c *Client) BulkRemoveRoute(ctx context.Context, entries []hwapi.RouteEntry, ignoreErrors bool) ([]hwapi.Status, error) {
	var resp bulkStatusResponse
	err := c.invoke(ctx, "BulkRemoveRoute", &bulkRemoveRouteRequest{Entries: entries, IgnoreErrors: ignoreErrors}, &resp)
	return resp.Statuses, err
}

type routeRequest struct {
	Entry hwapi.RouteEntry  `json:"entry"`
	Attrs []hwapi.Attribute `json:"attrs,omitempty"`
}

func (c *Client) RemoveRoute(ctx context.Context, entry hwapi.RouteEntry) error {
	return c.invoke(ctx, "RemoveRoute", &routeRequest{Entry: entry}, &struct{}{})
}

func (c *Client) CreateRoute(ctx context.Context, entry hwapi.RouteEntry, attrs []hwapi.Attribute) error {
	return c.invoke(ctx, "CreateRoute", &routeRequest{Entry: entry, Attrs: attrs}, &struct{}{})
}

type groupIDResponse struct {
	GroupID string `json:"group_id"`
}

func (c *Client) CreateNextHopGroup(ctx context.Context) (string, error) {
	var resp groupIDResponse
	err := c.invoke(ctx, "CreateNextHopGroup", &struct{}{}, &resp)
	return resp.GroupID, err
}

type groupRequest struct {
	GroupID string `json:"group_id"`
}

func (c *Client) RemoveNextHopGroup(ctx context.Context, groupID string) error {
	return c.invoke(ctx, "RemoveNextHopGroup", &groupRequest{GroupID: groupID}, &struct{}{})
}

type groupMemberRequest struct {
	GroupID string `json:"group_id"`
	NextHop string `json:"next_hop"`
}

func (c *Client) CreateNextHopGroupMember(ctx context.Context, groupID string, nextHop string) error {
	return c.invoke(ctx, "CreateNextHopGroupMember", &groupMemberRequest{GroupID: groupID, NextHop: nextHop}, &struct{}{})
}

func (c *Client) RemoveNextHopGroupMember(ctx context.Context, groupID string, nextHop string) error {
	return c.invoke(ctx, "RemoveNextHopGroupMember", &groupMemberRequest{GroupID: groupID, NextHop: nextHop}, &struct{}{})
}

type switchAttributeRequest struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

type switchAttributeResponse struct {
	Value string `json:"value"`
}

func (c *Client) GetSwitchAttribute(ctx context.Context, name string) (string, error) {
	var resp switchAttributeResponse
	err := c.invoke(ctx, "GetSwitchAttribute", &switchAttributeRequest{Name: name}, &resp)
	return resp.Value, err
}

func (c *Client) SetSwitchAttribute(ctx context.Context, name string, value string) error {
	return c.invoke(ctx, "SetSwitchAttribute", &switchAttributeRequest{Name: name, Value: value}, &struct{}{})
}

// Flush issues SetSwitchAttribute(FLUSH) — the pipeline-flush primitive
// the event loop calls after every dispatch.
func (c *Client) Flush(ctx context.Context) error {
	return c.SetSwitchAttribute(ctx, hwapi.AttrFlush, "")
}
