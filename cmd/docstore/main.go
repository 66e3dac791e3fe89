package main

import (
	"fmt"
	"os"

	"github.com/fulldump/goconfig"
	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/fulldump/docstore/bootstrap"
	"github.com/fulldump/docstore/configuration"
)

var banner = `
     _                _                 
  __| | ___   ___ ___| |_ ___  _ __ ___ 
 / _' |/ _ \ / __/ __| __/ _ \| '__/ _ \
| (_| | (_) | (__\__ \ || (_) | | |  __/
 \__,_|\___/ \___|___/\__\___/|_|  \___|
                           version ` + bootstrap.VERSION + `
`

func main() {

	c := configuration.Default()
	goconfig.Read(&c)

	if c.Version {
		fmt.Println("Version:", bootstrap.VERSION)
		return
	}

	if c.ShowBanner {
		fmt.Println(banner)
	}

	if c.ShowConfig {
		json.MarshalWrite(os.Stdout, c, jsontext.WithIndent("    "))
		fmt.Println()
	}

	start, _ := bootstrap.Bootstrap(&c)
	start()
}
