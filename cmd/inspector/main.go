package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/GoPolymarket/safegate/internal/chain"
	"github.com/GoPolymarket/safegate/internal/derive"
	"github.com/GoPolymarket/safegate/internal/safe"
)

// inspector resolves what the gateway would do for a user address:
// the derived signer, the predicted funding wallet, and (with -rpc)
// whether that wallet is deployed and who owns it.
func main() {
	var (
		user    = flag.String("user", "", "user chain address to inspect")
		chainID = flag.Int64("chain-id", 137, "EIP-155 chain id for the derived signer")
		rpcURL  = flag.String("rpc", "", "optional JSON-RPC endpoint for on-chain checks")
	)
	flag.Parse()

	if *user == "" {
		flag.Usage()
		os.Exit(2)
	}

	mnemonic := os.Getenv("SAFEGATE_WALLET_MNEMONIC")
	if mnemonic == "" {
		log.Fatal("SAFEGATE_WALLET_MNEMONIC is required")
	}

	deriver, err := derive.NewDeriver(mnemonic, *chainID)
	if err != nil {
		log.Fatalf("deriver: %v", err)
	}
	signer, err := deriver.DeriveSigner(*user)
	if err != nil {
		log.Fatalf("derive signer: %v", err)
	}

	predictor := safe.NewDefaultPredictor()
	wallet, err := predictor.Predict(signer.Address())
	if err != nil {
		log.Fatalf("predict wallet: %v", err)
	}

	fmt.Printf("user:             %s\n", signer.Identity)
	fmt.Printf("derivation index: %d\n", signer.Index)
	fmt.Printf("signer address:   %s\n", signer.Address().Hex())
	fmt.Printf("funding wallet:   %s\n", wallet.Hex())

	if *rpcURL == "" {
		return
	}

	client, err := chain.NewClient(*rpcURL)
	if err != nil {
		log.Fatalf("chain client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	code, err := client.GetCode(ctx, wallet)
	if err != nil {
		log.Fatalf("eth_getCode: %v", err)
	}
	deployed := len(code) > 0
	fmt.Printf("deployed:         %v\n", deployed)
	if !deployed {
		return
	}

	owners, err := client.GetOwners(ctx, wallet)
	if err != nil {
		log.Fatalf("getOwners: %v", err)
	}
	threshold, err := client.GetThreshold(ctx, wallet)
	if err != nil {
		log.Fatalf("getThreshold: %v", err)
	}

	fmt.Printf("threshold:        %d\n", threshold)
	authorized := false
	for _, o := range owners {
		fmt.Printf("owner:            %s\n", o.Hex())
		if o == signer.Address() {
			authorized = true
		}
	}
	fmt.Printf("signer is owner:  %v\n", authorized)
}
