package testutil

// ConsentsYAML is an OpenAPI 3 contract in the "consents" category.
const ConsentsYAML = `openapi: 3.0.0
info:
  title: Consents API
  version: 2.0.0
  description: Consent lifecycle
servers:
  - url: https://api.banco.com.br/open-banking/consents/v2
paths:
  /consents:
    post:
      operationId: consentsPostConsents
      summary: Create consent
      requestBody:
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/CreateConsent'
      responses:
        '201':
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/ResponseConsent'
  /consents/{consentId}:
    get:
      operationId: consentsGetConsentsConsentId
      responses:
        '200':
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/ResponseConsent'
components:
  schemas:
    Consent:
      type: object
      required: [consentId, status, creationDateTime]
      properties:
        consentId:
          type: string
          pattern: '^urn:[a-zA-Z0-9][a-zA-Z0-9-]{0,31}:[a-zA-Z0-9()+,.:=@;$_!*-]+$'
          maxLength: 256
        customerId:
          type: string
          format: uuid
        cpf:
          type: string
          pattern: '^\d{11}$'
        status:
          $ref: '#/components/schemas/EnumConsentStatus'
        creationDateTime:
          type: string
          format: date-time
        permissions:
          type: array
          minItems: 1
          maxItems: 3
          items:
            type: string
            enum: [ACCOUNTS_READ, ACCOUNTS_BALANCES_READ, RESOURCES_READ]
    EnumConsentStatus:
      type: string
      enum: [AUTHORISED, AWAITING_AUTHORISATION, REJECTED]
    CreateConsent:
      type: object
      required: [data]
      properties:
        data:
          type: object
          required: [expirationDateTime]
          properties:
            expirationDateTime:
              type: string
              format: date-time
            permissions:
              type: array
              items:
                type: string
    ResponseConsent:
      type: object
      properties:
        data:
          $ref: '#/components/schemas/Consent'
        links:
          allOf:
            - $ref: '#/components/schemas/Links'
          description: Pagination links
    Links:
      type: object
      properties:
        self:
          type: string
          format: uri
`

// ResourcesYAML is an OpenAPI 3 contract in the "resources" category.
const ResourcesYAML = `openapi: 3.0.0
info:
  title: Resources API
  version: 2.1.0
paths:
  /resources:
    get:
      responses:
        '200':
          content:
            application/json:
              schema:
                type: array
                items:
                  $ref: '#/components/schemas/Resource'
components:
  schemas:
    Resource:
      type: object
      required: [resourceId, consentId, accountId, type]
      properties:
        resourceId:
          type: string
          format: uuid
        consentId:
          type: string
        accountId:
          type: string
          pattern: '^[a-zA-Z0-9][a-zA-Z0-9-]{0,99}$'
        type:
          type: string
          enum: [ACCOUNT, CREDIT_CARD_ACCOUNT, LOAN]
        status:
          type: string
          enum: [AVAILABLE, UNAVAILABLE]
`

// AccountsJSON is an OpenAPI 3.1 JSON contract in the "accounts" category.
const AccountsJSON = `{
  "openapi": "3.1.0",
  "info": {"title": "Accounts API", "version": "2.4.1"},
  "paths": {
    "/accounts/{accountId}": {
      "get": {
        "operationId": "accountsGetAccountsAccountId",
        "responses": {
          "200": {"content": {"application/json": {"schema": {"$ref": "#/components/schemas/Account"}}}}
        }
      }
    }
  },
  "components": {
    "schemas": {
      "Account": {
        "allOf": [
          {"$ref": "#/components/schemas/AccountIdentification"},
          {
            "type": "object",
            "required": ["brandName", "type"],
            "properties": {
              "brandName": {"type": "string", "maxLength": 80},
              "companyCnpj": {"type": "string", "pattern": "^\\d{14}$"},
              "type": {"type": "string", "enum": ["CONTA_DEPOSITO_A_VISTA", "CONTA_POUPANCA"]},
              "number": {"type": "string", "pattern": "^\\d{8,20}$"},
              "balance": {"type": ["number", "null"], "minimum": 0, "exclusiveMaximum": 100000},
              "overdraftLimit": {"type": "integer", "minimum": 0, "maximum": 5000}
            }
          }
        ]
      },
      "AccountIdentification": {
        "type": "object",
        "required": ["accountId"],
        "properties": {
          "accountId": {"type": "string", "pattern": "^[a-zA-Z0-9][a-zA-Z0-9-]{0,99}$"},
          "customerId": {"type": "string"},
          "consentId": {"type": "string"}
        }
      }
    }
  }
}
`

// CustomersSwagger is a Swagger 2 contract in the "customers" category.
const CustomersSwagger = `swagger: '2.0'
info:
  title: Customers API
  version: 1.0.3
basePath: /open-banking/customers/v1
paths:
  /personal/identifications:
    get:
      responses:
        '200':
          schema:
            $ref: '#/definitions/PersonalIdentification'
definitions:
  PersonalIdentification:
    type: object
    required: [customerId, civilName]
    properties:
      customerId:
        type: string
      civilName:
        type: string
        maxLength: 70
      cpfNumber:
        type: string
      phoneNumber:
        type: string
      postCode:
        type: string
      email:
        type: string
        format: email
      birthDate:
        type: string
        format: date
`

// TransactionsYAML is a contract with no Open Finance category.
const TransactionsYAML = `openapi: 3.0.3
info:
  title: transactions
  version: 1.0.0
paths: {}
components:
  schemas:
    Transaction:
      type: object
      required: [transactionId, accountId, amount]
      properties:
        transactionId:
          type: string
          pattern: '^[a-zA-Z0-9][a-zA-Z0-9-]{0,99}$'
        accountId:
          type: string
        creditCardAccountId:
          type: string
        amount:
          type: number
          minimum: 0.01
          maximum: 10000
        transactionDate:
          type: string
          format: date
        type:
          type: string
          enum: [PIX, TED, BOLETO]
`

// MalformedYAML declares an array without an item type.
const MalformedYAML = `openapi: 3.0.0
info:
  title: Broken API
  version: 0.0.1
components:
  schemas:
    Thing:
      type: object
      properties:
        tags:
          type: array
`

// Fixtures is the default contracts directory layout.
var Fixtures = map[string]string{
	"consents/consents.yaml":   ConsentsYAML,
	"resources/resources.yaml": ResourcesYAML,
	"accounts/accounts.json":   AccountsJSON,
	"customers/customers.yml":  CustomersSwagger,
	"transactions.yaml":        TransactionsYAML,
	"broken.yaml":              MalformedYAML,
}
