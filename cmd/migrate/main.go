// Command migrate applies the invoicing schema with golang-migrate.
package main

func main() {
	Execute()
}
