// racecheck fires the same successful payment callback at a running engine
// through both channels at once and verifies that exactly one success
// transition happens.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/robokiosk/checkout-engine/internal/core/domain"
)

func main() {
	baseURL := flag.String("base-url", "http://localhost:8080", "engine base URL")
	originKey := flag.String("origin-key", "", "kiosk origin key for the notify channel")
	orderID := flag.String("order-id", "", "gateway order id (the session's correlation id)")
	transID := flag.String("trans-id", "racecheck-trans", "gateway transaction id")
	extraData := flag.String("extra-data", "", "extra data blob to round-trip")
	flag.Parse()

	if *orderID == "" {
		log.Fatal("order-id is required; start a checkout and read it from /api/session")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	cb := domain.PaymentCallback{
		Type:       domain.CallbackType,
		ResultCode: domain.ResultCodeSuccess,
		OrderID:    *orderID,
		TransID:    *transID,
		ExtraData:  *extraData,
	}

	var wg sync.WaitGroup
	wg.Add(2)

	start := time.Now()

	// message channel
	go func() {
		defer wg.Done()
		body, _ := json.Marshal(cb)
		req, _ := http.NewRequest(http.MethodPost, *baseURL+"/api/payment/notify", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Kiosk-Origin", *originKey)
		resp, err := client.Do(req)
		if err != nil {
			log.Printf("notify channel failed: %v", err)
			return
		}
		resp.Body.Close()
		log.Printf("notify channel: %d", resp.StatusCode)
	}()

	// redirect channel
	go func() {
		defer wg.Done()
		q := url.Values{
			"resultCode": {"0"},
			"orderId":    {*orderID},
			"transId":    {*transID},
			"extraData":  {*extraData},
		}
		resp, err := client.Get(*baseURL + "/api/payment/return?" + q.Encode())
		if err != nil {
			log.Printf("redirect channel failed: %v", err)
			return
		}
		resp.Body.Close()
		log.Printf("redirect channel: %d", resp.StatusCode)
	}()

	wg.Wait()
	log.Printf("both channels delivered in %v", time.Since(start))

	resp, err := client.Get(*baseURL + "/api/session")
	if err != nil {
		log.Fatalf("failed to read session: %v", err)
	}
	defer resp.Body.Close()

	var session domain.CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		log.Fatalf("failed to decode session: %v", err)
	}

	fmt.Printf("step=%s orderId=%s\n", session.Step, session.OrderID)
	if session.Step != domain.StepSuccess || session.OrderID == "" {
		log.Fatal("FAIL: session did not end in exactly one success transition")
	}
	fmt.Println("OK: single success transition")
}
