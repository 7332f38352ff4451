package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/be-registry/api/clients"
	"github.com/ruteri/be-registry/cmd/flags"
	"github.com/ruteri/be-registry/interfaces"
	"github.com/urfave/cli/v2"
)

var flagPayloadFile = &cli.StringFlag{
	Name:     "file",
	Aliases:  []string{"f"},
	Required: true,
	Usage:    "entity payload, JSON or YAML (.yaml, .yml)",
}

var flagStatus = &cli.StringFlag{
	Name:  "status",
	Value: string(interfaces.StatusDeregistered),
	Usage: "target status",
}

type clientConfig struct {
	client *clients.RegistryClient
	caller common.Address
}

func newClientConfig(cCtx *cli.Context) (*clientConfig, error) {
	c := &clientConfig{
		client: clients.NewRegistryClient(cCtx.String(flags.ServerAddrFlag.Name)),
	}
	if value := cCtx.String(flags.CallerFlag.Name); value != "" {
		caller, err := flags.ParseAddress("caller", value)
		if err != nil {
			return nil, err
		}
		c.caller = caller
	}
	return c, nil
}

func addressArg(cCtx *cli.Context, name string) (common.Address, error) {
	if cCtx.NArg() != 1 {
		return common.Address{}, cli.Exit(fmt.Sprintf("expected exactly one %s address argument", name), 1)
	}
	return flags.ParseAddress(name, cCtx.Args().First())
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := flags.LoadDotEnv(".env"); err != nil {
		log.Fatalf("could not load .env: %v", err)
	}

	app := &cli.App{
		Name:  "registry-client",
		Usage: "Query and manage business entities on a registry server",
		Flags: []cli.Flag{
			flags.ServerAddrFlag,
			flags.CallerFlag,
		},
		Commands: []*cli.Command{
			{
				Name:  "register",
				Usage: "register a new entity from a payload file",
				Flags: []cli.Flag{flagPayloadFile},
				Action: func(cCtx *cli.Context) error {
					c, err := newClientConfig(cCtx)
					if err != nil {
						return err
					}
					data, err := clients.LoadEntityPayload(cCtx.String(flagPayloadFile.Name))
					if err != nil {
						return err
					}
					address, err := c.client.RegisterBE(cCtx.Context, c.caller, data)
					if err != nil {
						return err
					}
					fmt.Println(address.Hex())
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "list all entities that are not deleted",
				Action: func(cCtx *cli.Context) error {
					c, err := newClientConfig(cCtx)
					if err != nil {
						return err
					}
					entities, err := c.client.GetAllBEs(cCtx.Context, c.caller)
					if err != nil {
						return err
					}
					return printJSON(entities)
				},
			},
			{
				Name:      "get",
				Usage:     "show one entity",
				ArgsUsage: "<entity address>",
				Action: func(cCtx *cli.Context) error {
					c, err := newClientConfig(cCtx)
					if err != nil {
						return err
					}
					address, err := addressArg(cCtx, "entity")
					if err != nil {
						return err
					}
					entity, err := c.client.GetBE(cCtx.Context, c.caller, address)
					if err != nil {
						return err
					}
					return printJSON(entity)
				},
			},
			{
				Name:      "by-user",
				Usage:     "list the entities of a user, split by expiry",
				ArgsUsage: "<user address>",
				Action: func(cCtx *cli.Context) error {
					c, err := newClientConfig(cCtx)
					if err != nil {
						return err
					}
					user, err := addressArg(cCtx, "user")
					if err != nil {
						return err
					}
					res, err := c.client.GetBEsByUser(cCtx.Context, c.caller, user)
					if err != nil {
						return err
					}
					return printJSON(res)
				},
			},
			{
				Name:      "update",
				Usage:     "replace the payload of an entity",
				ArgsUsage: "<entity address>",
				Flags:     []cli.Flag{flagPayloadFile},
				Action: func(cCtx *cli.Context) error {
					c, err := newClientConfig(cCtx)
					if err != nil {
						return err
					}
					address, err := addressArg(cCtx, "entity")
					if err != nil {
						return err
					}
					data, err := clients.LoadEntityPayload(cCtx.String(flagPayloadFile.Name))
					if err != nil {
						return err
					}
					return c.client.UpdateBE(cCtx.Context, c.caller, address, data)
				},
			},
			{
				Name:      "status",
				Usage:     "change the status of an entity",
				ArgsUsage: "<entity address>",
				Flags:     []cli.Flag{flagStatus},
				Action: func(cCtx *cli.Context) error {
					c, err := newClientConfig(cCtx)
					if err != nil {
						return err
					}
					address, err := addressArg(cCtx, "entity")
					if err != nil {
						return err
					}
					status, err := interfaces.ParseStatus(cCtx.String(flagStatus.Name))
					if err != nil {
						return err
					}
					return c.client.ChangeBEStatus(cCtx.Context, c.caller, address, status)
				},
			},
			{
				Name:      "delete",
				Usage:     "delete an entity",
				ArgsUsage: "<entity address>",
				Action: func(cCtx *cli.Context) error {
					c, err := newClientConfig(cCtx)
					if err != nil {
						return err
					}
					address, err := addressArg(cCtx, "entity")
					if err != nil {
						return err
					}
					return c.client.DeleteBE(cCtx.Context, c.caller, address)
				},
			},
			{
				Name:  "logic",
				Usage: "show the registry address and logic version",
				Action: func(cCtx *cli.Context) error {
					c, err := newClientConfig(cCtx)
					if err != nil {
						return err
					}
					info, err := c.client.LogicInfo(cCtx.Context)
					if err != nil {
						return err
					}
					return printJSON(info)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
