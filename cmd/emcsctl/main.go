// Command emcsctl is an operator tool for reference codes, document hashes,
// signing keys and party tokens.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"emcs/internal/arc"
	"emcs/internal/ledger/signer"
	"emcs/internal/notary"
	id "emcs/pkg/domain"
	"emcs/pkg/platform/middleware/auth"
)

const usage = `usage: emcsctl <command> [flags]

commands:
  arc new [-country XX] [-n N]   mint reference codes
  arc check CODE...              check reference code shape and checksum
  hash [-digest D] FILE          hash a JSON document canonically
  verify [-digest D] FILE HASH   check a JSON document against a hash
  keygen [-seed S]               derive or generate a ledger signing key
  token [-ttl D] ADDRESS         issue a bearer token for a party address`

func main() {
	logger := slog.New(pterm.NewSlogHandler(&pterm.DefaultLogger))
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func run(cmd string, args []string) error {
	switch cmd {
	case "arc":
		if len(args) == 0 {
			return fmt.Errorf("arc needs a subcommand: new or check")
		}
		switch args[0] {
		case "new":
			return arcNew(args[1:])
		case "check":
			return arcCheck(args[1:])
		}
		return fmt.Errorf("unknown arc subcommand %q", args[0])
	case "hash":
		return hashCmd(args)
	case "verify":
		return verifyCmd(args)
	case "keygen":
		return keygenCmd(args)
	case "token":
		return tokenCmd(args)
	case "help", "-h", "--help":
		fmt.Println(usage)
		return nil
	}
	return fmt.Errorf("unknown command %q\n%s", cmd, usage)
}

// offline treats every code as unused; the CLI has no store to consult.
type offline struct{}

func (offline) Exists(context.Context, arc.Code) (bool, error) { return false, nil }

func arcNew(args []string) error {
	fs := flag.NewFlagSet("arc new", flag.ContinueOnError)
	country := fs.String("country", arc.DefaultJurisdiction, "two-letter jurisdiction code")
	n := fs.Int("n", 1, "number of codes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	gen, err := arc.NewGenerator(offline{}, arc.WithJurisdiction(strings.ToUpper(*country)))
	if err != nil {
		return err
	}
	for i := 0; i < *n; i++ {
		code, err := gen.Generate(context.Background())
		if err != nil {
			return err
		}
		pterm.Println(code.String())
	}
	return nil
}

func arcCheck(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("arc check needs at least one code")
	}
	data := pterm.TableData{{"Code", "Well formed", "Checksum"}}
	failed := false
	for _, code := range args {
		wellFormed := arc.IsWellFormed(code)
		checksum := arc.VerifyChecksum(code)
		failed = failed || !wellFormed || !checksum
		data = append(data, []string{code, mark(wellFormed), mark(checksum)})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}
	if failed {
		return fmt.Errorf("one or more codes are invalid")
	}
	return nil
}

func mark(ok bool) string {
	if ok {
		return pterm.LightGreen("yes")
	}
	return pterm.LightRed("no")
}

func readDocument(path string) (any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%s is not JSON: %w", path, err)
	}
	return doc, nil
}

func hashCmd(args []string) error {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	digestFlag := fs.String("digest", string(notary.DigestSHA256), "sha256 or blake2b")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("hash needs exactly one file")
	}
	digest, err := notary.ParseDigest(*digestFlag)
	if err != nil {
		return err
	}
	doc, err := readDocument(fs.Arg(0))
	if err != nil {
		return err
	}
	sum, err := notary.HashWith(digest, doc)
	if err != nil {
		return err
	}
	pterm.Println(sum)
	return nil
}

func verifyCmd(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	digestFlag := fs.String("digest", string(notary.DigestSHA256), "sha256 or blake2b")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("verify needs a file and a hash")
	}
	digest, err := notary.ParseDigest(*digestFlag)
	if err != nil {
		return err
	}
	doc, err := readDocument(fs.Arg(0))
	if err != nil {
		return err
	}
	if !notary.VerifyWith(digest, doc, fs.Arg(1)) {
		pterm.Error.Println("document does not match the hash")
		return fmt.Errorf("verification failed")
	}
	pterm.Success.Println("document matches the hash")
	return nil
}

func keygenCmd(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	seed := fs.String("seed", "", "derive the key from this seed instead of generating one")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var (
		key *signer.Schnorr
		err error
	)
	if *seed != "" {
		key, err = signer.FromSeed([]byte(*seed))
	} else {
		key, err = signer.Generate()
	}
	if err != nil {
		return err
	}
	pub, err := key.PublicKey()
	if err != nil {
		return err
	}
	return pterm.DefaultTable.WithData(pterm.TableData{
		{"Address", key.Address()},
		{"Public key", fmt.Sprintf("%x", pub)},
	}).Render()
}

func tokenCmd(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	key := fs.String("key", os.Getenv("JWT_SIGNING_KEY"), "HS256 signing key")
	issuer := fs.String("issuer", "emcs", "token issuer")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("token needs exactly one party address")
	}
	if *key == "" {
		return fmt.Errorf("a signing key is required (-key or JWT_SIGNING_KEY)")
	}
	party, err := id.ParsePartyID(fs.Arg(0))
	if err != nil {
		return err
	}
	token, err := auth.NewTokenService(*key, *issuer).Issue(party, *ttl)
	if err != nil {
		return err
	}
	pterm.Println(token)
	return nil
}
