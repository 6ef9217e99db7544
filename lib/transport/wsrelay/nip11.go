// Package wsrelay is the transport shell of SPEC_FULL.md §4.13: a
// gofiber/fiber/v2 HTTP server upgrading to gofiber/contrib/websocket,
// grounded directly in the teacher's lib/transports/websocket package. It
// is an external collaborator per spec §1 — shipped here as the one
// reference instance the relay needs to run end to end.
package wsrelay

import (
	"github.com/gofiber/fiber/v2"
)

// RelayInfo is the NIP-11 relay information document (spec §6).
type RelayInfo struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Pubkey        string `json:"pubkey"`
	Contact       string `json:"contact"`
	SupportedNIPs []int  `json:"supported_nips"`
	Software      string `json:"software"`
	Version       string `json:"version"`
}

// relayInfoMiddleware answers a non-upgrade GET carrying
// "Accept: application/nostr+json" with the relay information document,
// mirroring the teacher's handleRelayInfoRequests, minus its HORNET-
// specific signing extension (out of spec scope).
func relayInfoMiddleware(info RelayInfo) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodGet && c.Get("Accept") == "application/nostr+json" {
			c.Set("Access-Control-Allow-Origin", "*")
			return c.JSON(info)
		}
		return c.Next()
	}
}
