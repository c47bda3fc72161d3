package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kartikbazzad/docstore/pkg/client"
	"github.com/peterh/liner"
)

const prompt = "docstore> "

func main() {
	addr := flag.String("addr", "127.0.0.1:7420", "server address")
	authKey := flag.String("auth", "", "authentication key")
	flag.Parse()

	fmt.Printf("docstore shell\n")
	fmt.Printf("connecting to %s...\n", *addr)

	c := client.New(*addr, *authKey)
	if err := c.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	fmt.Printf("connected. type .help for commands.\n\n")

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt(prompt)
		if err != nil {
			if err == io.EOF || err == liner.ErrPromptAborted {
				fmt.Println()
				return
			}
			fmt.Fprintf(os.Stderr, "error reading input: %v\n", err)
			continue
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if input == ".exit" || input == ".quit" {
			c.Exit()
			return
		}

		if err := dispatch(c, input); err != nil {
			fmt.Println("ERROR")
			fmt.Println(err.Error())
		}
		fmt.Println()
	}
}

func dispatch(c *client.Client, line string) error {
	fields, err := tokenize(line)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}

	cmd, args := fields[0], fields[1:]

	switch cmd {
	case ".help":
		printHelp()
		return nil
	case ".insert":
		return cmdInsert(c, args)
	case ".upsert":
		return cmdUpsert(c, args)
	case ".find":
		return cmdFind(c, args)
	case ".count":
		return cmdCount(c, args)
	case ".update":
		return cmdUpdate(c, args)
	case ".delete":
		return cmdDelete(c, args)
	case ".setschema":
		return cmdSetSchema(c, args)
	case ".createindex":
		return cmdCreateIndex(c, args)
	case ".compact":
		return cmdCompact(c, args)
	case ".createuser":
		return cmdCreateUser(c, args)
	default:
		return fmt.Errorf("unknown command: %s (try .help)", cmd)
	}
}

func cmdInsert(c *client.Client, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: .insert <collection> <json document>")
	}
	doc, err := decodeObject(args[1])
	if err != nil {
		return err
	}
	result, err := c.Insert(args[0], doc)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func cmdUpsert(c *client.Client, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: .upsert <collection> <json query> <json document>")
	}
	query, err := decodeObject(args[1])
	if err != nil {
		return err
	}
	doc, err := decodeObject(args[2])
	if err != nil {
		return err
	}
	if err := c.Upsert(args[0], query, doc); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

func cmdFind(c *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: .find <collection> [json query]")
	}
	var query map[string]interface{}
	if len(args) >= 2 {
		var err error
		if query, err = decodeObject(args[1]); err != nil {
			return err
		}
	}
	results, err := c.Find(args[0], query, nil, nil, 0, 0)
	if err != nil {
		return err
	}
	return printJSON(results)
}

func cmdCount(c *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: .count <collection> [json query]")
	}
	var query map[string]interface{}
	if len(args) >= 2 {
		var err error
		if query, err = decodeObject(args[1]); err != nil {
			return err
		}
	}
	n, err := c.Count(args[0], query)
	if err != nil {
		return err
	}
	fmt.Println(n)
	return nil
}

func cmdUpdate(c *client.Client, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: .update <collection> <json query> <json update>")
	}
	query, err := decodeObject(args[1])
	if err != nil {
		return err
	}
	update, err := decodeObject(args[2])
	if err != nil {
		return err
	}
	if err := c.Update(args[0], query, update); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

func cmdDelete(c *client.Client, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: .delete <collection> <json query>")
	}
	query, err := decodeObject(args[1])
	if err != nil {
		return err
	}
	if err := c.Delete(args[0], query); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

func cmdSetSchema(c *client.Client, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: .setschema <collection> <json schema>")
	}
	schema, err := decodeObject(args[1])
	if err != nil {
		return err
	}
	if err := c.SetSchema(args[0], schema); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

func cmdCreateIndex(c *client.Client, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: .createindex <collection> <field>")
	}
	if err := c.CreateIndex(args[0], args[1]); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

func cmdCompact(c *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: .compact <collection>")
	}
	if err := c.Compact(args[0]); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

func cmdCreateUser(c *client.Client, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: .createuser <key> <admin|read_write|read_only>")
	}
	if err := c.CreateUser(args[0], args[1]); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

func printHelp() {
	fmt.Println(`commands:
  .insert <collection> <json>                 insert a document
  .upsert <collection> <query> <json>         upsert matching documents
  .find <collection> [query]                   find matching documents
  .count <collection> [query]                   count matching documents
  .update <collection> <query> <update>         update matching documents
  .delete <collection> <query>                   delete matching documents
  .setschema <collection> <json>                 register a validation schema
  .createindex <collection> <field>               declare a secondary index
  .compact <collection>                           force log compaction
  .createuser <key> <role>                     create a credential (admin only)
  .exit                                            close the connection and quit`)
}

func decodeObject(raw string) (map[string]interface{}, error) {
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return m, nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// tokenize splits a line into whitespace-separated fields, treating a
// brace- or bracket-delimited JSON value as a single field regardless of
// embedded whitespace.
func tokenize(line string) ([]string, error) {
	var fields []string
	i := 0
	for i < len(line) {
		for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
			i++
		}
		if i >= len(line) {
			break
		}
		if line[i] == '{' || line[i] == '[' {
			end, err := matchBracket(line, i)
			if err != nil {
				return nil, err
			}
			fields = append(fields, line[i:end+1])
			i = end + 1
			continue
		}
		start := i
		for i < len(line) && line[i] != ' ' && line[i] != '\t' {
			i++
		}
		fields = append(fields, line[start:i])
	}
	return fields, nil
}

func matchBracket(line string, start int) (int, error) {
	open := line[start]
	close := byte('}')
	if open == '[' {
		close = ']'
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(line); i++ {
		ch := line[i]
		if inString {
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unterminated JSON value starting at column %d", start+1)
}
