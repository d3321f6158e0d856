// Command chatc is a minimal interactive client for a chatd server.
// Every line typed after login is sent as a chat message; incoming
// messages print as they arrive.
package main

import (
	"bufio"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"chatd/internal/protocol"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7878", "Server address")
	keyHex := flag.String("key", "", "Hex-encoded 32-byte ChaCha20-Poly1305 key (plaintext when empty)")
	flag.Parse()

	cipher := protocol.IdentityCipher()
	if *keyHex != "" {
		key, err := hex.DecodeString(*keyHex)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid key: %v\n", err)
			os.Exit(1)
		}
		cipher, err = protocol.NewChaCha20Poly1305(key)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
	codec := protocol.NewCodec(cipher)

	stdin := bufio.NewScanner(os.Stdin)
	nickname := prompt(stdin, "Nickname: ")
	password := prompt(stdin, "Password: ")
	register := strings.EqualFold(prompt(stdin, "Login or register? [L/r]: "), "r")

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := codec.WriteClient(conn, protocol.NewLogin(register, nickname, password)); err != nil {
		fmt.Fprintf(os.Stderr, "error: send login: %v\n", err)
		os.Exit(1)
	}

	go receive(codec, conn)

	for stdin.Scan() {
		line := strings.TrimSpace(stdin.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			if tc, ok := conn.(*net.TCPConn); ok {
				_ = tc.CloseWrite()
			} else {
				_ = conn.Close()
			}
			// Wait for the receiver to drain whatever the server
			// still sends before it observes the close.
			time.Sleep(200 * time.Millisecond)
			return
		case strings.HasPrefix(line, "/fetch "):
			since, err := time.Parse(time.RFC3339, strings.TrimPrefix(line, "/fetch "))
			if err != nil {
				fmt.Fprintf(os.Stderr, "usage: /fetch <RFC3339 instant>\n")
				continue
			}
			if err := codec.WriteClient(conn, protocol.NewFetch(since)); err != nil {
				fmt.Fprintf(os.Stderr, "error: send fetch: %v\n", err)
				os.Exit(1)
			}
		default:
			if err := codec.WriteClient(conn, protocol.NewSendMessage(line)); err != nil {
				fmt.Fprintf(os.Stderr, "error: send message: %v\n", err)
				os.Exit(1)
			}
		}
	}
}

func prompt(in *bufio.Scanner, label string) string {
	fmt.Print(label)
	if !in.Scan() {
		os.Exit(0)
	}
	return strings.TrimSpace(in.Text())
}

func receive(codec protocol.Codec, conn net.Conn) {
	for {
		cmd, err := codec.ReadServer(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Println("server closed the connection")
				os.Exit(0)
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		switch cmd.Kind {
		case protocol.ServerLoginSuccess:
			fmt.Println("logged in")
		case protocol.ServerMessageRecv:
			fmt.Println(cmd.Message.String())
		case protocol.ServerWarning:
			fmt.Printf("warning: %s\n", cmd.Description)
		case protocol.ServerError:
			fmt.Fprintf(os.Stderr, "server error: %s\n", cmd.Description)
			os.Exit(1)
		}
	}
}
