// Command worker runs the background side of the invoicing service: invoice
// email delivery, the overdue sweep and a few operator commands.
package main

func main() {
	Execute()
}
