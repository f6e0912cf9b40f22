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

// Binary slaacd drives IPv6 stateless address autoconfiguration: it
// attaches the inet6 stack to one or more TUN devices, solicits routers
// and waits for advertisements with retries, or runs an in-process
// host/router demo topology over a pipe link.
package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"inet6.dev/inet6/pkg/ip6"
	"inet6.dev/inet6/pkg/ip6/stack"
)

// version is stamped at build time.
var version = "dev"

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(runCmd), "")
	subcommands.Register(new(demoCmd), "")
	subcommands.Register(new(versionCmd), "")

	flag.Parse()
	subcommands.Execute(context.Background())
}

// newLogger builds the daemon logger from a configured level name.
func newLogger(level string) (*logrus.Logger, error) {
	log := logrus.New()
	if level == "" {
		return log, nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("bad log level %q: %w", level, err)
	}
	log.SetLevel(lvl)
	return log, nil
}

// logDispatcher surfaces stack autoconfiguration events through logrus.
type logDispatcher struct {
	log *logrus.Logger
}

var _ stack.Dispatcher = (*logDispatcher)(nil)

// OnRouterAdvert implements stack.Dispatcher.OnRouterAdvert.
func (d *logDispatcher) OnRouterAdvert(id ip6.NICID, router ip6.Address, prefix ip6.AddressWithPrefix) {
	d.log.WithFields(logrus.Fields{
		"nic":    id,
		"router": router,
		"prefix": prefix,
	}).Info("router advertisement applied")
}

// OnAutoConfigured implements stack.Dispatcher.OnAutoConfigured.
func (d *logDispatcher) OnAutoConfigured(id ip6.NICID, addr ip6.AddressWithPrefix) {
	d.log.WithFields(logrus.Fields{
		"nic":  id,
		"addr": addr,
	}).Info("interface autoconfigured")
}

// OnWaitTimeout implements stack.Dispatcher.OnWaitTimeout.
func (d *logDispatcher) OnWaitTimeout(id ip6.NICID) {
	d.log.WithFields(logrus.Fields{
		"nic": id,
	}).Warn("timed out waiting for router advertisement")
}

// versionCmd implements subcommands.Command for the "version" command.
type versionCmd struct{}

// Name implements subcommands.Command.Name.
func (*versionCmd) Name() string {
	return "version"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*versionCmd) Synopsis() string {
	return "show slaacd version"
}

// Usage implements subcommands.Command.Usage.
func (*versionCmd) Usage() string {
	return "version\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (*versionCmd) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*versionCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	fmt.Printf("slaacd version %s\n", version)
	return subcommands.ExitSuccess
}
