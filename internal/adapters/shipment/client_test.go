package shipment_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"scandesk/internal/adapters/shipment"
	"scandesk/internal/ports"
	"scandesk/internal/testhelpers"
)

var _ = Describe("Client", func() {
	const baseURL = "https://lookup.test"
	var client *shipment.Client
	ctx := context.Background()

	shipmentsPayload := `{
		"shipments": [
			{
				"shipmentId": 33974374,
				"orderId": 43945660,
				"orderNumber": "100038-1",
				"trackingNumber": "1Z63Y7F00300061",
				"shipmentItems": [
					{"sku": "SK-001", "name": "Sticker pack", "quantity": 1},
					{"sku": "IC-002", "name": "Blue IC", "quantity": 2}
				]
			}
		],
		"total": 1,
		"page": 1,
		"pages": 1
	}`

	BeforeEach(func() {
		testhelpers.Activate()
		client = shipment.New(baseURL, "key", "secret", 0)
		client.UseDefaultClient()
	})

	AfterEach(func() {
		testhelpers.Deactivate()
	})

	Describe("ShipmentItems", func() {
		It("returns the SKUs of every shipment for the tracking number", func() {
			testhelpers.Expect(baseURL).
				Get("/shipments?trackingNumber=1Z63Y7F00300061&includeShipmentItems=true").
				BasicAuth("key", "secret").
				Reply(200).
				BodyString(shipmentsPayload)

			items, err := client.ShipmentItems(ctx, "1Z63Y7F00300061")
			Expect(err).NotTo(HaveOccurred())
			Expect(testhelpers.IsDone()).To(BeTrue())
			Expect(items).To(Equal([]string{"SK-001", "IC-002"}))
		})

		It("reports ErrNoShipment when nothing matches", func() {
			testhelpers.Expect(baseURL).
				Get("/shipments?trackingNumber=UNKNOWN").
				Reply(200).
				BodyString(`{"shipments": [], "total": 0, "page": 1, "pages": 0}`)

			_, err := client.ShipmentItems(ctx, "UNKNOWN")
			Expect(errors.Is(err, ports.ErrNoShipment)).To(BeTrue())
		})
	})

	Describe("FindOrder and OrderItems", func() {
		It("walks from the shipment to its order", func() {
			testhelpers.Expect(baseURL).
				Get("/shipments?trackingNumber=1Z63Y7F00300061").
				Reply(200).
				BodyString(shipmentsPayload)
			testhelpers.Expect(baseURL).
				Get("/orders/43945660").
				Reply(200).
				BodyString(`{"orderId": 43945660, "orderNumber": "100038-1", "orderStatus": "shipped",
					"items": [{"sku": "SK-001-RED", "name": "Sticker", "quantity": 1}, {"sku": "", "name": "Gift note", "quantity": 1}]}`)

			orderID, err := client.FindOrder(ctx, "1Z63Y7F00300061")
			Expect(err).NotTo(HaveOccurred())
			Expect(orderID).To(Equal("43945660"))

			items, err := client.OrderItems(ctx, orderID)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(Equal([]string{"SK-001-RED"}))
			Expect(testhelpers.IsDone()).To(BeTrue())
		})
	})

	DescribeTable("failures",
		func(status int, body string, check func(error)) {
			testhelpers.Expect(baseURL).
				Get("/shipments").
				Reply(status).
				BodyString(body)

			_, err := client.ShipmentItems(ctx, "1Z63Y7F00300061")
			Expect(err).To(HaveOccurred())
			check(err)
		},
		Entry("unauthorized", 401, `{"Message": "Unauthorized"}`, func(err error) {
			var statusErr *ports.StatusError
			Expect(errors.As(err, &statusErr)).To(BeTrue())
			Expect(statusErr.Code).To(Equal(401))
			Expect(statusErr.Body).To(ContainSubstring("Unauthorized"))
		}),
		Entry("server error", 503, ``, func(err error) {
			var statusErr *ports.StatusError
			Expect(errors.As(err, &statusErr)).To(BeTrue())
			Expect(statusErr.Error()).To(Equal("shipment lookup returned status 503"))
		}),
		Entry("malformed JSON", 200, `{"shipments": [`, func(err error) {
			Expect(err.Error()).To(ContainSubstring("decode /shipments response"))
		}),
	)

	It("refuses to call the provider without credentials", func() {
		c := shipment.New(baseURL, "", "", 0)
		c.UseDefaultClient()

		_, err := c.ShipmentItems(ctx, "1Z63Y7F00300061")
		Expect(errors.Is(err, ports.ErrMissingCredentials)).To(BeTrue())
	})

	It("surfaces transport errors", func() {
		testhelpers.Expect(baseURL).Get("/shipments").Fail(errors.New("connection reset"))

		_, err := client.FindOrder(ctx, "1Z63Y7F00300061")
		Expect(err).To(MatchError(ContainSubstring("connection reset")))
	})
})
