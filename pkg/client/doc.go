// Package client is the Go SDK for the trustd HTTP API.
//
// # Enrolling a device and reporting on it
//
//	c, err := client.New("http://localhost:8080")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	reg, _ := c.Register(ctx, "Laptop_A", pemKey)
//	fmt.Println(reg.Certificate.CredentialID)
//
//	res, _ := c.SendAlert(ctx, client.Alert{DeviceID: "Laptop_A", Type: "benign"})
//	fmt.Println(res.Status) // "ok" or "rejected"
//
// # Heuristic evaluation
//
// Evaluate runs the full rule set and returns the resulting device status:
//
//	st, err := c.Evaluate(ctx, client.Alert{
//	    DeviceID: "Router_1",
//	    Metrics:  client.Metrics{PacketsSent: 100, PacketsFailed: 80},
//	})
//
// # Auditing the ledger
//
//	ok, reason, _ := c.VerifyLedger(ctx)
//	blocks, _ := c.ExportLedger(ctx)
//
// When the server has a checkpoint key, Checkpoint returns a signed token
// pinning the current chain tip; VerifyCheckpoint later confirms the chain
// was not rewritten beneath it.
package client
