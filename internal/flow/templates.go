package flow

import (
	"bytes"
	"fmt"
	"text/template"
)

const (
	gasLimit       uint64 = 1000
	deployGasLimit uint64 = 2000
)

const eventManagerBorrow = `{{define "eventManager"}}getAccount({{.KaizenEvent}})
        .capabilities.get<&{KaizenEvent.EventManagerPublic}>(KaizenEvent.EventPublicPath)
        .borrow()
        ?? panic("Could not get reference to EventManager"){{end}}`

var scriptSources = map[string]string{
	"getAllEvents": `import KaizenEvent from {{.KaizenEvent}}

access(all) fun main(): [KaizenEvent.EventInfo] {
    let eventManagerRef = {{template "eventManager" .}}

    return eventManagerRef.getAllEvents()
}`,

	"getEventInfo": `import KaizenEvent from {{.KaizenEvent}}

access(all) fun main(eventId: UInt64): KaizenEvent.EventInfo? {
    let eventManagerRef = {{template "eventManager" .}}

    return eventManagerRef.getEventInfo(eventId: eventId)
}`,

	"hasJoinedEvent": `import KaizenEvent from {{.KaizenEvent}}

access(all) fun main(eventId: UInt64, attendee: Address): Bool {
    let eventManagerRef = {{template "eventManager" .}}

    return eventManagerRef.hasJoined(eventId: eventId, attendee: attendee)
}`,

	"getUserNFTs": `import KaizenEventNFT from {{.KaizenEventNFT}}
import MetadataViews from {{.MetadataViews}}

access(all) fun main(address: Address): [KaizenEventNFT.NFT] {
    let account = getAccount(address)

    if let collection = account
        .capabilities.get<&{KaizenEventNFT.CollectionPublic}>(KaizenEventNFT.CollectionPublicPath)
        .borrow() {

        let nfts: [KaizenEventNFT.NFT] = []
        for id in collection.getIDs() {
            if let nft = collection.borrowKaizenNFT(id: id) {
                nfts.append(*nft)
            }
        }
        return nfts
    }

    return []
}`,

	"getFlowBalance": `import FungibleToken from {{.FungibleToken}}
import FlowToken from {{.FlowToken}}

access(all) fun main(address: Address): UFix64 {
    let vaultRef = getAccount(address).capabilities
        .get<&{FungibleToken.Balance}>(/public/flowTokenBalance)
        .borrow()
        ?? panic("Could not borrow Balance reference to the Vault")

    return vaultRef.balance
}`,
}

var transactionSources = map[TxKind]string{
	TxCreateEvent: `import KaizenEvent from {{.KaizenEvent}}
import FlowToken from {{.FlowToken}}

transaction(
    name: String,
    description: String,
    price: UFix64,
    maxAttendees: UInt32,
    eventDate: UFix64,
    location: String,
    imageUrl: String
) {
    let eventManagerRef: &KaizenEvent.EventManager
    let organizerAddress: Address

    prepare(organizer: &Account) {
        self.organizerAddress = organizer.address
        self.eventManagerRef = organizer.storage
            .borrow<&KaizenEvent.EventManager>(from: KaizenEvent.EventStoragePath)
            ?? panic("Could not borrow EventManager reference")
    }

    execute {
        let eventId = self.eventManagerRef.createEvent(
            name: name,
            description: description,
            organizer: self.organizerAddress,
            price: price,
            maxAttendees: maxAttendees,
            eventDate: eventDate,
            location: location,
            imageUrl: imageUrl
        )
        log("Event created with ID: ".concat(eventId.toString()))
    }
}`,

	TxJoinEvent: `import KaizenEvent from {{.KaizenEvent}}
import FlowToken from {{.FlowToken}}
import FungibleToken from {{.FungibleToken}}

transaction(eventId: UInt64, amount: UFix64) {
    let eventManagerRef: &{KaizenEvent.EventManagerPublic}
    let paymentVault: @{FungibleToken.Vault}
    let attendeeAddress: Address

    prepare(attendee: auth(BorrowValue) &Account) {
        self.attendeeAddress = attendee.address
        self.eventManagerRef = {{template "eventManager" .}}

        let vaultRef = attendee.storage
            .borrow<auth(FungibleToken.Withdraw) &FlowToken.Vault>(from: /storage/flowTokenVault)
            ?? panic("Could not borrow reference to the owner's Vault")

        self.paymentVault <- vaultRef.withdraw(amount: amount)
    }

    execute {
        let changeVault <- self.eventManagerRef.joinEvent(
            eventId: eventId,
            attendee: self.attendeeAddress,
            payment: <-self.paymentVault
        )

        if changeVault.balance > 0.0 {
            let receiverRef = getAccount(self.attendeeAddress)
                .capabilities.get<&{FungibleToken.Receiver}>(/public/flowTokenReceiver)
                .borrow()
                ?? panic("Could not borrow receiver reference")
            receiverRef.deposit(from: <-changeVault)
        } else {
            destroy changeVault
        }

        log("Successfully joined event ".concat(eventId.toString()))
    }
}`,

	TxMintPOAP: `import KaizenEventNFT from {{.KaizenEventNFT}}
import NonFungibleToken from {{.NonFungibleToken}}

transaction(
    eventId: UInt64,
    eventName: String,
    eventDate: UFix64,
    attendee: Address,
    imageUrl: String,
    description: String
) {
    let minterRef: &KaizenEventNFT.NFTMinter
    let recipientRef: &{NonFungibleToken.CollectionPublic}

    prepare(minter: &Account) {
        self.minterRef = minter.storage
            .borrow<&KaizenEventNFT.NFTMinter>(from: KaizenEventNFT.MinterStoragePath)
            ?? panic("Could not borrow minter reference")

        self.recipientRef = getAccount(attendee)
            .capabilities.get<&{NonFungibleToken.CollectionPublic}>(KaizenEventNFT.CollectionPublicPath)
            .borrow()
            ?? panic("Could not get recipient collection reference")
    }

    execute {
        self.minterRef.mintNFT(
            recipient: self.recipientRef,
            eventId: eventId,
            eventName: eventName,
            eventDate: eventDate,
            attendee: attendee,
            imageUrl: imageUrl,
            description: description
        )
        log("POAP NFT minted for event ".concat(eventId.toString()))
    }
}`,

	TxSetupCollection: `import KaizenEventNFT from {{.KaizenEventNFT}}
import NonFungibleToken from {{.NonFungibleToken}}
import MetadataViews from {{.MetadataViews}}

transaction {
    prepare(user: auth(Storage, Capabilities) &Account) {
        if user.storage.borrow<&KaizenEventNFT.Collection>(from: KaizenEventNFT.CollectionStoragePath) == nil {
            let collection <- KaizenEventNFT.createEmptyCollection()
            user.storage.save(<-collection, to: KaizenEventNFT.CollectionStoragePath)

            let publicCapability = user.capabilities.storage.issue<&{NonFungibleToken.CollectionPublic, KaizenEventNFT.CollectionPublic, MetadataViews.ResolverCollection}>(
                KaizenEventNFT.CollectionStoragePath
            )
            user.capabilities.publish(publicCapability, at: KaizenEventNFT.CollectionPublicPath)
        }
        log("NFT Collection setup completed")
    }
}`,

	// contract source arrives hex encoded so it is never spliced into Cadence text
	TxDeployContract: `transaction(name: String, code: String) {
    prepare(acct: auth(AddContract) &Account) {
        acct.contracts.add(name: name, code: code.decodeHex())
    }
}`,
}

// Templates renders the scripts and transactions for one network.
type Templates struct {
	scripts      map[string]string
	transactions map[TxKind]string
}

func NewTemplates(c Contracts) (*Templates, error) {
	t := &Templates{
		scripts:      make(map[string]string, len(scriptSources)),
		transactions: make(map[TxKind]string, len(transactionSources)),
	}

	for name, src := range scriptSources {
		out, err := render(name, src, c)
		if err != nil {
			return nil, err
		}
		t.scripts[name] = out
	}
	for kind, src := range transactionSources {
		out, err := render(string(kind), src, c)
		if err != nil {
			return nil, err
		}
		t.transactions[kind] = out
	}
	return t, nil
}

func render(name, src string, c Contracts) (string, error) {
	tmpl, err := template.New(name).Parse(eventManagerBorrow)
	if err != nil {
		return "", fmt.Errorf("flow: parse %s: %w", name, err)
	}
	if tmpl, err = tmpl.Parse(src); err != nil {
		return "", fmt.Errorf("flow: parse %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, c); err != nil {
		return "", fmt.Errorf("flow: render %s: %w", name, err)
	}
	return buf.String(), nil
}

func (t *Templates) Script(name string) (string, bool) {
	s, ok := t.scripts[name]
	return s, ok
}

func (t *Templates) Transaction(kind TxKind) (string, bool) {
	s, ok := t.transactions[kind]
	return s, ok
}
