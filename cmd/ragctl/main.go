// Command ragctl is a command line client for the retrieval gateway. It
// signs requests with a local wallet key and pays x402 challenges
// automatically.
//
// Usage:
//
//	ragctl [flags] health
//	ragctl [flags] index <path> [price_usd]
//	ragctl [flags] index-web <url> [price_usd]
//	ragctl [flags] search <query>
//	ragctl [flags] chunks <doc_id> <start> [end]
//
// The wallet key comes from -key or the RAGPAY_CLIENT_KEY environment
// variable, as base58 or a JSON byte array.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	walletkey "github.com/ragpay/server/internal/solana"
	"github.com/ragpay/server/pkg/ragclient"
)

func main() {
	_ = godotenv.Load()

	gateway := flag.String("gateway", envOr("RAGPAY_GATEWAY_URL", "http://localhost:8080"), "gateway base URL")
	keyStr := flag.String("key", os.Getenv("RAGPAY_CLIENT_KEY"), "wallet private key (base58 or JSON array)")
	k := flag.Int("k", 0, "search result count (0 uses the gateway default)")
	price := flag.Float64("price", 0, "per-chunk price in USD for index commands")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fail("missing command: health, index, index-web, search, or chunks")
	}

	ctx := context.Background()
	if args[0] == "health" {
		// Health needs no wallet.
		client := ragclient.New(*gateway, nil)
		if err := client.Health(ctx); err != nil {
			fail(err.Error())
		}
		fmt.Println("healthy")
		return
	}

	key, err := walletkey.ParsePrivateKey(*keyStr)
	if err != nil {
		fail("wallet key: " + err.Error())
	}
	client := ragclient.New(*gateway, key)

	switch args[0] {
	case "index":
		if len(args) < 2 {
			fail("usage: ragctl index <path> [-price USD]")
		}
		docs, err := client.IndexDocuments(ctx, []ragclient.DocumentInput{
			{Path: args[1], PriceUSD: *price},
		})
		exitOn(err)
		printJSON(docs)

	case "index-web":
		if len(args) < 2 {
			fail("usage: ragctl index-web <url> [-price USD]")
		}
		docs, err := client.IndexWebPages(ctx, []ragclient.WebPageInput{
			{URL: args[1], PriceUSD: *price},
		})
		exitOn(err)
		printJSON(docs)

	case "search":
		if len(args) < 2 {
			fail("usage: ragctl search <query> [-k N]")
		}
		result, info, err := client.Search(ctx, args[1], *k, nil)
		exitOn(err)
		reportPayment(info)
		printJSON(result)

	case "chunks":
		if len(args) < 3 {
			fail("usage: ragctl chunks <doc_id> <start> [end]")
		}
		start, err := strconv.Atoi(args[2])
		if err != nil {
			fail("start chunk: " + err.Error())
		}
		end := -1
		if len(args) > 3 {
			if end, err = strconv.Atoi(args[3]); err != nil {
				fail("end chunk: " + err.Error())
			}
		}
		result, info, err := client.GetChunkRange(ctx, args[1], start, end)
		exitOn(err)
		reportPayment(info)
		printJSON(result)

	default:
		fail("unknown command " + args[0])
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func reportPayment(info *ragclient.PaymentInfo) {
	if info == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "paid %s base units to %s on %s\n", info.Amount, info.PayTo, info.Network)
	if info.Settlement != nil && info.Settlement.Transaction != "" {
		fmt.Fprintf(os.Stderr, "settled: %s\n", info.Settlement.Transaction)
	}
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fail(err.Error())
	}
	fmt.Println(string(out))
}

func exitOn(err error) {
	if err != nil {
		fail(err.Error())
	}
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "ragctl: "+msg)
	os.Exit(1)
}
