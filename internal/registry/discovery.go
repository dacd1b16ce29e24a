/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Discovery bootstraps mesh membership over mDNS, so a freshly started
// instance can find existing peers on the local network before it has
// any registry address to register against. It is a bootstrap aid only:
// once an instance learns one peer's HTTP address this way, normal
// register/heartbeat calls take over.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/mdns"
)

const serviceName = "_meshgraph._tcp"

// Advertised is a handle on a running mDNS advertisement; Close stops it.
type Advertised struct {
	server *mdns.Server
}

func (a *Advertised) Close() error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown()
}

// Advertise publishes this instance's IID and HTTP port over mDNS so
// other instances on the LAN can discover it.
func Advertise(iid string, port int) (*Advertised, error) {
	service, err := mdns.NewMDNSService(iid, serviceName, "", "", port, nil, []string{"iid=" + iid})
	if err != nil {
		return nil, fmt.Errorf("registry: mdns service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("registry: mdns server: %w", err)
	}
	return &Advertised{server: server}, nil
}

// Discovered is one instance found via mDNS.
type Discovered struct {
	IID     string
	Address string
	Port    int
}

// Discover queries the LAN for other instances for up to ctx's deadline
// (or until entries stop arriving) and returns what it found.
func Discover(ctx context.Context) ([]Discovered, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	found := make([]Discovered, 0, 4)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for entry := range entries {
			d := Discovered{Port: entry.Port}
			if len(entry.AddrV4) > 0 {
				d.Address = entry.AddrV4.String()
			} else {
				d.Address = entry.Addr.String()
			}
			for _, field := range entry.InfoFields {
				if len(field) > len("iid=") && field[:4] == "iid=" {
					d.IID = field[4:]
				}
			}
			found = append(found, d)
		}
	}()

	params := mdns.DefaultParams(serviceName)
	params.Entries = entries
	if deadline, ok := ctx.Deadline(); ok {
		params.Timeout = time.Until(deadline)
	}
	err := mdns.Query(params)
	close(entries)
	<-done
	if err != nil {
		return nil, fmt.Errorf("registry: mdns query: %w", err)
	}
	return found, nil
}
