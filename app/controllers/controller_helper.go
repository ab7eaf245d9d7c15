package controllers

import (
	"github.com/subhamasthu/sankalp-bot/internal/pkg/fsm"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/ledger"
	"github.com/subhamasthu/sankalp-bot/internal/pkg/payments"
)

// Handler dependencies, wired once at startup.
var (
	machine     *fsm.Machine
	paymentsSvc *payments.Service
	ledgerSvc   *ledger.Service
)

// Setup injects the services the HTTP handlers dispatch into.
func Setup(m *fsm.Machine, p *payments.Service, l *ledger.Service) {
	machine = m
	paymentsSvc = p
	ledgerSvc = l
}
