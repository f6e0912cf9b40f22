// Copyright 2025 The inet6 Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"inet6.dev/inet6/pkg/ip6"
	"inet6.dev/inet6/pkg/ip6/link/pipe"
	"inet6.dev/inet6/pkg/ip6/link/tundev"
	"inet6.dev/inet6/pkg/ip6/stack"
	"inet6.dev/inet6/pkg/routeradv"
)

// autoconfigure runs autoconfiguration attempts for one NIC, retrying
// timeouts with exponential backoff up to the configured budget. The
// stack itself never retransmits; retry policy lives here with the
// caller.
func autoconfigure(ctx context.Context, s *stack.Stack, id ip6.NICID, timeout time.Duration, retries uint64) (ip6.AddressWithPrefix, error) {
	var acquired ip6.AddressWithPrefix
	op := func() error {
		addr, err := s.Autoconfigure(id, timeout)
		switch err {
		case nil:
			acquired = addr
			return nil
		case ip6.ErrTimeout:
			return fmt.Errorf("nic %d: %s", id, err)
		default:
			return backoff.Permanent(fmt.Errorf("nic %d: %s", id, err))
		}
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return ip6.AddressWithPrefix{}, err
	}
	return acquired, nil
}

// runCmd implements subcommands.Command for the "run" command.
type runCmd struct {
	configPath string
}

// Name implements subcommands.Command.Name.
func (*runCmd) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*runCmd) Synopsis() string {
	return "autoconfigure the TUN interfaces named in the config file"
}

// Usage implements subcommands.Command.Usage.
func (*runCmd) Usage() string {
	return "run -config <path>\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "path to the slaacd TOML configuration")
}

// Execute implements subcommands.Command.Execute.
func (c *runCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		logrus.Error(err)
		return subcommands.ExitFailure
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		logrus.Error(err)
		return subcommands.ExitFailure
	}
	if len(cfg.Interfaces) == 0 {
		log.Error("no interfaces configured")
		return subcommands.ExitFailure
	}

	s := stack.New(stack.Options{
		Logger:     log,
		Dispatcher: &logDispatcher{log: log},
	})

	var ids []ip6.NICID
	for i, iface := range cfg.Interfaces {
		linkAddr, err := ip6.ParseMACAddress(iface.MAC)
		if err != nil {
			log.WithField("interface", iface.Name).Errorf("bad MAC: %s", err)
			return subcommands.ExitFailure
		}

		ep, err := tundev.New(&tundev.Options{
			Name:        iface.Name,
			MTU:         iface.MTU,
			LinkAddress: linkAddr,
		})
		if err != nil {
			log.WithField("interface", iface.Name).Errorf("open device: %s", err)
			return subcommands.ExitFailure
		}
		defer ep.Close()

		id := ip6.NICID(i + 1)
		if err := s.CreateNICWithOptions(id, ep, stack.NICOptions{Name: iface.Name}); err != nil {
			log.WithField("interface", iface.Name).Errorf("create nic: %s", err)
			return subcommands.ExitFailure
		}
		ids = append(ids, id)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			addr, err := autoconfigure(ctx, s, id, cfg.WaitTimeout.Duration, cfg.Retries)
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{"nic": id, "addr": addr}).Info("acquired address")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error(err)
		return subcommands.ExitFailure
	}

	for id, info := range s.NICInfo() {
		log.WithFields(logrus.Fields{
			"nic":    id,
			"name":   info.Name,
			"addr":   info.AddressWithPrefix,
			"router": info.DefaultRouter,
		}).Info("interface state")
	}
	return subcommands.ExitSuccess
}

// demoCmd implements subcommands.Command for the "demo" command: an
// in-process host and router connected by a pipe link.
type demoCmd struct {
	configPath string
}

// Name implements subcommands.Command.Name.
func (*demoCmd) Name() string {
	return "demo"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*demoCmd) Synopsis() string {
	return "run an in-process host/router autoconfiguration demo"
}

// Usage implements subcommands.Command.Usage.
func (*demoCmd) Usage() string {
	return "demo [-config <path>]\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *demoCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "path to the slaacd TOML configuration")
}

// Execute implements subcommands.Command.Execute.
func (c *demoCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig(c.configPath)
	if err != nil {
		logrus.Error(err)
		return subcommands.ExitFailure
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		logrus.Error(err)
		return subcommands.ExitFailure
	}

	prefix, err := parsePrefix(cfg.Advertiser.Prefix)
	if err != nil {
		log.Error(err)
		return subcommands.ExitFailure
	}
	routerMAC, err := ip6.ParseMACAddress(cfg.Advertiser.MAC)
	if err != nil {
		log.Errorf("bad advertiser MAC: %s", err)
		return subcommands.ExitFailure
	}
	hostMAC, _ := ip6.ParseMACAddress("0a:00:27:00:00:01")

	hostEP, routerEP := pipe.New(hostMAC, routerMAC, 1500)
	defer hostEP.Close()
	defer routerEP.Close()

	s := stack.New(stack.Options{
		Logger:     log,
		Dispatcher: &logDispatcher{log: log},
	})
	const nicID = 1
	if err := s.CreateNICWithOptions(nicID, hostEP, stack.NICOptions{Name: "demo0"}); err != nil {
		log.Errorf("create nic: %s", err)
		return subcommands.ExitFailure
	}

	adv, err := routeradv.New(routerEP, routeradv.Options{
		Prefix:            prefix,
		RouterLifetime:    cfg.Advertiser.RouterLifetime.Duration,
		ValidLifetime:     cfg.Advertiser.ValidLifetime.Duration,
		PreferredLifetime: cfg.Advertiser.PreferredLifetime.Duration,
		Interval:          cfg.Advertiser.Interval.Duration,
		Logger:            log,
	})
	if err != nil {
		log.Errorf("start advertiser: %s", err)
		return subcommands.ExitFailure
	}
	defer adv.Stop()

	addr, err := autoconfigure(ctx, s, nicID, cfg.WaitTimeout.Duration, cfg.Retries)
	if err != nil {
		log.Error(err)
		return subcommands.ExitFailure
	}

	info := s.NICInfo()[nicID]
	log.WithFields(logrus.Fields{
		"addr":    addr,
		"netmask": info.AddressWithPrefix.PrefixLen,
		"router":  info.DefaultRouter,
	}).Info("demo host autoconfigured")
	return subcommands.ExitSuccess
}
