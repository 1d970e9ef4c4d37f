package canvas

import (
	"advisory-canvas/internal/logging"
	"advisory-canvas/internal/protocol"
	"advisory-canvas/internal/transport"
)

// Inbound handlers. Malformed payloads are logged and dropped without
// touching any store; nothing here returns an error to the transport.

func (c *Controller) handleChange(msgType string) transport.Handler {
	return func(from string, payload []byte) {
		change, err := protocol.DecodeChange(msgType, payload, from)

		if c.lock() != nil {
			return
		}
		defer c.mu.Unlock()

		if err != nil {
			c.dropped++
			logging.LogDropped(c.logger, msgType, from, err)
			return
		}
		// Stores kept for previously visited charts stay current so they
		// never answer a sync request with shapes their peers removed.
		target, ok := c.registry.Lookup(change.Chart)
		if change.Chart == c.active {
			target, ok = c.store(), true
		}
		if !ok {
			c.ignored++
			chartLogger := logging.WithChart(c.logger, change.Chart.String())
			chartLogger.Debug().
				Str("type", msgType).
				Str("from", from).
				Msg("Change for unvisited chart ignored")
			return
		}

		if change.Version > c.remoteVersions[from] {
			c.remoteVersions[from] = change.Version
		}
		shapeID := change.ID
		if change.Shape != nil {
			shapeID = change.Shape.ID
		}
		if Apply(target, change) && change.Chart == c.active {
			if _, ok := c.store().Get(c.selected); !ok {
				c.selected = ""
			}
			c.render()
		}
		c.applied++
		logging.LogChange(c.logger, "in", string(change.Kind), change.Chart.String(), shapeID, change.Version)
	}
}

func (c *Controller) handleSyncRequest(from string, payload []byte) {
	var req protocol.SyncRequestPayload
	err := protocol.Decode(protocol.TypeSyncRequest, payload, &req)

	if c.lock() != nil {
		return
	}
	defer c.mu.Unlock()

	if err != nil {
		c.dropped++
		logging.LogDropped(c.logger, protocol.TypeSyncRequest, from, err)
		return
	}
	chart := req.Chart.ToModel()
	if !c.sync.ShouldAnswer(c.active, chart, c.registry) {
		return
	}

	snap := c.snapshot(chart)
	data, err := c.sync.Respond(snap, req.RequestID)
	if err != nil {
		logging.LogSendFailure(c.logger, protocol.TypeSyncResponse, err)
		return
	}
	if err := c.transport.Send(protocol.TypeSyncResponse, data, from); err != nil {
		logging.LogSendFailure(c.logger, protocol.TypeSyncResponse, err)
		return
	}
	logging.LogSync(c.logger, "respond", chart.String(), len(snap.Shapes), snap.Version)
}

func (c *Controller) handleSyncResponse(from string, payload []byte) {
	snap, requestID, err := protocol.DecodeSnapshot(payload)

	if c.lock() != nil {
		return
	}
	defer c.mu.Unlock()

	if err != nil {
		c.dropped++
		logging.LogDropped(c.logger, protocol.TypeSyncResponse, from, err)
		return
	}
	if snap.Chart != c.active {
		c.ignored++
		chartLogger := logging.WithChart(c.logger, snap.Chart.String())
		chartLogger.Debug().Str("from", from).Msg("Sync response for inactive chart ignored")
		return
	}
	if !c.sync.Accept(snap.Chart, requestID) {
		return
	}

	c.sync.Adopt(c.store(), snap)
	c.emitter.AdoptVersion(snap.Version)
	if snap.Version > c.remoteVersions[from] {
		c.remoteVersions[from] = snap.Version
	}
	if days, err := snap.FutureDays.Take(); err == nil {
		c.mapper.SetFutureDays(days)
	}
	if _, ok := c.store().Get(c.selected); !ok {
		c.selected = ""
	}
	c.render()
	logging.LogSync(c.logger, "adopt", snap.Chart.String(), len(snap.Shapes), snap.Version)
}

func (c *Controller) handleChartChange(from string, payload []byte) {
	var p protocol.ChartChangePayload
	err := protocol.Decode(protocol.TypeChartChange, payload, &p)

	if c.lock() != nil {
		return
	}
	defer c.mu.Unlock()

	if err != nil {
		c.dropped++
		logging.LogDropped(c.logger, protocol.TypeChartChange, from, err)
		return
	}
	key := p.ToModel()
	if !c.follow || key == c.active {
		return
	}
	c.switchChart(key)
	c.requestSync()
}

func (c *Controller) handleFutureSpace(from string, payload []byte) {
	var p protocol.FutureSpacePayload
	err := protocol.Decode(protocol.TypeFutureSpace, payload, &p)

	if c.lock() != nil {
		return
	}
	defer c.mu.Unlock()

	if err != nil {
		c.dropped++
		logging.LogDropped(c.logger, protocol.TypeFutureSpace, from, err)
		return
	}
	if p.Chart.ToModel() != c.active {
		c.ignored++
		return
	}
	c.mapper.SetFutureDays(p.FutureDays)
	c.logger.Debug().Str("from", from).Int("future_days", p.FutureDays).Msg("Future space updated")
}
