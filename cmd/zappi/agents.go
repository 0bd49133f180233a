package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pedroavv1914/zappi-chatbot/internal/chat"
	"github.com/pedroavv1914/zappi-chatbot/internal/chat/console"
	"github.com/pedroavv1914/zappi-chatbot/internal/chat/discord"
	"github.com/pedroavv1914/zappi-chatbot/internal/chat/slack"
	"github.com/pedroavv1914/zappi-chatbot/internal/config"
	"github.com/pedroavv1914/zappi-chatbot/internal/conversation"
	"github.com/pedroavv1914/zappi-chatbot/internal/metrics"
	"github.com/pedroavv1914/zappi-chatbot/internal/store"
	"github.com/pedroavv1914/zappi-chatbot/internal/tenant"
)

// agentDeps are the process-wide pieces every tenant agent shares.
type agentDeps struct {
	cfg     *config.Config
	store   *store.Store
	metrics *metrics.Metrics
	in      io.Reader // console input
	out     io.Writer
}

// newAdapter builds the transport named by a tenant's config.
func newAdapter(tc config.TenantConfig, in io.Reader, out io.Writer) (chat.Adapter, error) {
	switch tc.Platform {
	case config.PlatformSlack:
		return slack.New(slack.AdapterOpts{AppToken: tc.Slack.AppToken, BotToken: tc.Slack.BotToken})
	case config.PlatformDiscord:
		return discord.New(discord.AdapterOpts{BotToken: tc.Discord.BotToken})
	case config.PlatformConsole:
		return console.New(console.AdapterOpts{In: in, Out: out}), nil
	default:
		return nil, fmt.Errorf("platform %q is not supported", tc.Platform)
	}
}

// newAgent wires a tenant's engine to adapter.
func newAgent(t tenant.Tenant, adapter chat.Adapter, deps agentDeps) (*chat.Agent, error) {
	return chat.NewAgent(chat.AgentOpts{
		Tenant:        t.Name,
		Adapter:       adapter,
		Engine:        &conversation.Engine{Catalog: t.Catalog, DisplayName: t.DisplayName},
		Store:         deps.store,
		Metrics:       deps.metrics,
		RetryAttempts: deps.cfg.Conversation.RetryAttempts,
		RetryBackoff:  deps.cfg.RetryBackoff(),
		Out:           deps.out,
	})
}

// agentFactory returns a Factory that builds a fresh adapter and agent for t
// on every call, so the supervisor can recreate them after a credential loss.
func agentFactory(t tenant.Tenant, deps agentDeps) chat.Factory {
	return func(ctx context.Context) (chat.Runner, error) {
		adapter, err := newAdapter(t.Transport, deps.in, deps.out)
		if err != nil {
			return nil, err
		}
		agent, err := newAgent(t, adapter, deps)
		if err != nil {
			return nil, err
		}
		return agent, nil
	}
}
