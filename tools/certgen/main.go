// Package main writes a development CA plus server and client certificates
// for running cmd/server over HTTPS and pointing the client at it.
//
//	go run ./tools/certgen -dir certs -host localhost -host 127.0.0.1 -client alice
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/atinyakov/kongtze/internal/certgen"
)

type hostList []string

func (h *hostList) String() string     { return strings.Join(*h, ",") }
func (h *hostList) Set(v string) error { *h = append(*h, v); return nil }

func main() {
	dir := flag.String("dir", "certs", "output directory")
	client := flag.String("client", "kongtze-client", "client certificate common name")
	var hosts hostList
	flag.Var(&hosts, "host", "server host name or IP (repeatable)")
	flag.Parse()

	if err := generate(*dir, *client, hosts); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Certificates generated into ./%s\n", *dir)
}

// generate writes ca, server and client pairs into dir.
func generate(dir, clientCN string, hosts []string) error {
	if len(hosts) == 0 {
		hosts = []string{"localhost", "127.0.0.1"}
	}

	ca, caPair, err := certgen.NewCA("Kongtze Dev CA")
	if err != nil {
		return err
	}
	if err := caPair.Write(dir, "ca"); err != nil {
		return err
	}

	serverPair, err := ca.Issue(certgen.Server, hosts[0], hosts...)
	if err != nil {
		return fmt.Errorf("server cert: %w", err)
	}
	if err := serverPair.Write(dir, "server"); err != nil {
		return err
	}

	clientPair, err := ca.Issue(certgen.Client, clientCN)
	if err != nil {
		return fmt.Errorf("client cert: %w", err)
	}
	return clientPair.Write(dir, "client")
}
