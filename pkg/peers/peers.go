// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package peers resolves the ordered list of peer endpoints that are
// asked for content, starting with the local node.
package peers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	ma "github.com/multiformats/go-multiaddr"
)

var (
	ErrUnsupportedAddress = errors.New("peers: unsupported address")
	ErrUnexpectedStatus   = errors.New("peers: unexpected status")
)

const maxPeersResponseSize = 1 << 20

// Directory lists the peers currently known to the local node.
type Directory interface {
	LocalPeers(ctx context.Context) ([]string, error)
}

// Peer is a single entry of the gossip peers response.
type Peer struct {
	Address string `json:"address"`
}

// PeersResponse is the gossip service response.
type PeersResponse struct {
	Peers []Peer `json:"peers"`
}

// GossipClient queries the local peer gossip service over HTTP.
type GossipClient struct {
	url    string
	client *http.Client
}

var _ Directory = (*GossipClient)(nil)

func NewGossipClient(gossipURL string, client *http.Client) *GossipClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &GossipClient{
		url:    strings.TrimRight(gossipURL, "/"),
		client: client,
	}
}

// LocalPeers returns the content endpoints of the gossiped peers.
// Addresses that can not be mapped to an endpoint are skipped.
func (g *GossipClient) LocalPeers(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url+"/peers", nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get peers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get peers: %w: %s", ErrUnexpectedStatus, resp.Status)
	}

	var r PeersResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPeersResponseSize)).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode peers: %w", err)
	}

	endpoints := make([]string, 0, len(r.Peers))
	for _, p := range r.Peers {
		e, err := Endpoint(p.Address)
		if err != nil {
			continue
		}
		endpoints = append(endpoints, e)
	}
	return endpoints, nil
}

// Endpoint maps a peer address to the base url of its content API. The
// address is either an http(s) url or a multiaddr with an ip or dns
// component followed by tcp, optionally ending in tls or https.
func Endpoint(address string) (string, error) {
	address = strings.TrimSpace(address)
	if strings.HasPrefix(address, "http://") || strings.HasPrefix(address, "https://") {
		u, err := url.Parse(address)
		if err != nil || u.Host == "" {
			return "", fmt.Errorf("%w: %q", ErrUnsupportedAddress, address)
		}
		return strings.TrimRight(u.Scheme+"://"+u.Host+u.Path, "/"), nil
	}

	addr, err := ma.NewMultiaddr(address)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrUnsupportedAddress, address, err)
	}

	var host string
	for _, p := range []int{ma.P_IP4, ma.P_IP6, ma.P_DNS, ma.P_DNS4, ma.P_DNS6} {
		if v, err := addr.ValueForProtocol(p); err == nil {
			host = v
			break
		}
	}
	if host == "" {
		return "", fmt.Errorf("%w: %q: no host", ErrUnsupportedAddress, address)
	}

	port, err := addr.ValueForProtocol(ma.P_TCP)
	if err != nil {
		return "", fmt.Errorf("%w: %q: no tcp port", ErrUnsupportedAddress, address)
	}

	scheme := "http"
	for _, p := range []int{ma.P_HTTPS, ma.P_TLS} {
		if _, err := addr.ValueForProtocol(p); err == nil {
			scheme = "https"
			break
		}
	}

	return scheme + "://" + net.JoinHostPort(host, port), nil
}
